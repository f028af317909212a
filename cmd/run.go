package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emberfall.gg/portcullis/internal/api"
	"emberfall.gg/portcullis/internal/banlist"
	"emberfall.gg/portcullis/internal/brand"
	"emberfall.gg/portcullis/internal/config"
	"emberfall.gg/portcullis/internal/engine"
	"emberfall.gg/portcullis/internal/firewall"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/server"
	"emberfall.gg/portcullis/internal/services"
)

// stopTimeout bounds how long shutdown waits for in-flight work.
const stopTimeout = 10 * time.Second

// RunRun runs the daemon in the foreground until SIGINT or SIGTERM.
// Firewall rules stay installed on exit; removal is the cleanup
// subcommand's job.
func RunRun(configFile string) error {
	cfg, err := loadOrCreateConfig(configFile)
	if err != nil {
		return err
	}

	initLogging(cfg)
	log := logging.WithComponent("main")
	log.Info("starting", "name", cfg.ProcessName(), "version", brand.Version, "config", configFile)

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	whitelist, blacklist := buildPolicies(cfg, backend)

	// Windows auto-creates permissive per-program rules the first time
	// the game binary listens. Disable those and open the shared ports
	// before the lists take over.
	if n, ok := backend.(*firewall.Netsh); ok {
		if err := n.Bootstrap(cfg.GeneralName(), cfg.General.GamePrograms, generalAllows(cfg)); err != nil {
			log.Warn("windows bootstrap incomplete", "error", err)
		}
	}

	banSvc := banlist.NewService(cfg.Banlist.Path, cfg.PollInterval(), blacklist)

	eng := engine.New()
	eng.Register("whitelist", whitelist)
	eng.Register("blacklist", blacklist)
	eng.SetReconciler(banSvc)

	grp := services.NewGroup()
	grp.Add(eng)
	grp.Add(server.New(cfg.Listen, 0, eng))

	if cfg.API.Listen != "" {
		apiSrv := api.New(api.Options{
			Addr:     cfg.API.Listen,
			Version:  brand.Version,
			Policies: []api.PolicyInfo{whitelist, blacklist},
			Banlist:  banSvc,
			Statuses: grp.Statuses,
		})
		eng.SetSink(apiSrv.Hub())
		banSvc.OnAction(func(action, ip string, err error) {
			eng.Emit("blacklist", action, ip, err)
		})
		grp.Add(apiSrv)
	}

	ctx := context.Background()
	if err := grp.StartAll(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	log.Info("running", "listen", cfg.Listen, "backend", backend.Name(), "banlist", cfg.Banlist.Path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig.String())

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	grp.StopAll(stopCtx)

	log.Info("stopped; firewall rules remain installed")
	return nil
}

// loadOrCreateConfig loads the configuration, writing the commented
// default file first on a fresh install so operators have something
// to edit.
func loadOrCreateConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		info("No configuration at %s, writing defaults\n", path)
		if err := config.WriteDefault(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// initLogging replaces the default logger with one built from the
// logging block. An unknown level name falls back to info.
func initLogging(cfg *config.Config) {
	lvl, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.SetDefault(logging.New(logging.Options{
		Level:       lvl,
		JSON:        cfg.Logging.JSON,
		ProcessName: cfg.ProcessName(),
	}))
}
