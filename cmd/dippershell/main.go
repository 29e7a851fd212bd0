package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Flags holds the CLI flags overriding config file values.
type Flags struct {
	ConfigPath    string
	BackendCmd    string
	ResourceDir   string
	WellKnownPort int
	IPCAddr       string
	NoIPC         bool
	LogLevel      string
	Color         bool
}

func buildRoot() *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "dippershell",
		Short: "Backend sidecar supervisor for the Dipper desktop app",
		Long: "dippershell finds or allocates a loopback endpoint, launches the bundled\n" +
			"lightweight backend, polls its health contract, and serves the loopback IPC\n" +
			"API the Dipper UI talks to.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, flags)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "c", "", "path to TOML config file")
	pf.StringVar(&flags.BackendCmd, "backend", "", "backend executable (overrides config)")
	pf.StringVar(&flags.ResourceDir, "resource-dir", "", "bundle resource directory")
	pf.IntVar(&flags.WellKnownPort, "well-known-port", 0, "development backend port probed before spawning")
	pf.StringVar(&flags.IPCAddr, "ipc-addr", "", "loopback address for the IPC API")
	pf.BoolVar(&flags.NoIPC, "no-ipc", false, "disable the loopback IPC API")
	pf.StringVar(&flags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.Color, "color", false, "colorize console logs")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the dippershell version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dippershell %s\n", version)
		},
	})
	return root
}
