package main

import (
	"flag"
	"fmt"
	"os"

	"emberfall.gg/portcullis/cmd"
	"emberfall.gg/portcullis/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.DefaultConfigPath()

	switch os.Args[1] {
	case "run":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", defaultConfig, "Configuration file")
		runFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		runFlags.Parse(os.Args[2:])

		if err := cmd.RunRun(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
			os.Exit(1)
		}

	case "cleanup":
		cleanupFlags := flag.NewFlagSet("cleanup", flag.ExitOnError)
		configFile := cleanupFlags.String("config", defaultConfig, "Configuration file")
		cleanupFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		cleanupFlags.Parse(os.Args[2:])

		if err := cmd.RunCleanup(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := checkFlags.String("config", defaultConfig, "Configuration file")
		checkFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		checkFlags.Parse(os.Args[2:])

		// Allow the config as a bare argument: portcullis check my.hcl
		if len(checkFlags.Args()) > 0 {
			*configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := statusFlags.String("config", defaultConfig, "Configuration file")
		statusFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		statusFlags.Parse(os.Args[2:])

		if err := cmd.RunStatus(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)
		fmt.Printf("Build: %s\n", brand.BuildTime)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  run       Run the daemon in the foreground
            Options: --config (-c) <file>
  cleanup   Remove every firewall rule and chain this config owns
            Options: --config (-c) <file>
  check     Validate a configuration file
            Options: --config (-c) <file>
  status    Show daemon status via the admin API
            Options: --config (-c) <file>
  version   Print version information

Examples:
  %s run
  %s run -c /etc/portcullis/portcullis.hcl
  %s check game-host.hcl
  %s cleanup

The default configuration file is %s.
`,
		brand.Name, brand.Description,
		brand.BinaryName,
		brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName,
		brand.DefaultConfigPath())
}
