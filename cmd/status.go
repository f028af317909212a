package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"emberfall.gg/portcullis/internal/api"
	"emberfall.gg/portcullis/internal/brand"
	"emberfall.gg/portcullis/internal/config"
)

// RunStatus queries the running daemon's admin API and prints a
// human summary.
func RunStatus(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if cfg.API.Listen == "" {
		return fmt.Errorf("admin API is disabled in %s; status needs it", configFile)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + cfg.API.Listen + "/api/status")
	if err != nil {
		errPrint(os.Stderr, "Cannot reach %s: %v\n", cfg.API.Listen, err)
		return fmt.Errorf("is the daemon running? start with: %s run", brand.BinaryName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	printStatus(&status)
	return nil
}

func printStatus(st *api.StatusResponse) {
	bold := color.New(color.Bold)

	bold.Printf("=== %s status ===\n\n", brand.Name)
	fmt.Printf("Version:  %s\n", st.Version)
	fmt.Printf("Uptime:   %s\n", st.Uptime)
	fmt.Println()

	if len(st.Services) > 0 {
		bold.Println("Services:")
		for _, svc := range st.Services {
			state := color.GreenString("running")
			if !svc.Running {
				state = color.RedString("stopped")
			}
			fmt.Printf("  %-12s %s", svc.Name, state)
			if svc.Error != "" {
				fmt.Printf("  %s", color.RedString(svc.Error))
			}
			fmt.Println()
		}
		fmt.Println()
	}

	bold.Println("Policies:")
	for _, p := range st.Policies {
		proto := strings.Join(p.Protocols, "+")
		detail := proto
		if len(p.Ports) > 0 {
			detail = fmt.Sprintf("%s %s", proto, joinPorts(p.Ports))
		}
		fmt.Printf("  %-10s %-24s %-14s %d members\n", p.Name, p.Chain, detail, len(p.Members))
	}
	fmt.Println()

	if st.Banlist != nil {
		bold.Println("Ban file:")
		fmt.Printf("  %s: %d entries", st.Banlist.Path, st.Banlist.Entries)
		if !st.Banlist.LastChange.IsZero() {
			fmt.Printf(", last change %s", st.Banlist.LastChange.Format(time.RFC3339))
		}
		fmt.Println()
	}

	if st.Subscribers > 0 {
		fmt.Printf("\n%d event subscriber(s)\n", st.Subscribers)
	}
}
