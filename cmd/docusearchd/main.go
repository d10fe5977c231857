// Command docusearchd is both the docusearchd HTTP daemon (serve) and a CLI
// client for operating it remotely (submit, status, search, delete,
// structure), in the teacher lineage's single-binary daemon+CLI shape.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL docusearchd's client commands talk to.
	serverURL string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "docusearchd",
	Short:   "Multi-vector document search daemon and CLI",
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "docusearchd server URL")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(structureCmd)
}
