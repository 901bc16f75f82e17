package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string

	BuildVersion = "dev"
	BuildCommit  = "none"
	BuildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "stower",
	Short: "Stower - backup artifact storage with keep-N cycling",
	Long: `Stower uploads locally produced backup artifacts to remote storages
and cycles old uploads: each storage keeps its N most recent uploads, tracked
in a durable per-storage ledger across runs.`,
}

// ExecuteCLI runs the root command with build metadata injected at link time.
func ExecuteCLI(version, commit, date string) error {
	if version != "" {
		BuildVersion = version
	}
	if commit != "" {
		BuildCommit = commit
	}
	if date != "" {
		BuildDate = date
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stower.yaml)")
}
