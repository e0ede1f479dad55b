// Command hdfproxy inspects array files and serves them to remote sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug, human bool
	root := &cobra.Command{
		Use:           "hdfproxy",
		Short:         "Store and serve RESQML arrays in HDF5 files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Init(debug, human)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")
	root.PersistentFlags().BoolVar(&human, "human", false, "Write logs for a terminal instead of as JSON.")
	root.AddCommand(inspectCmd(), serveCmd(), minmaxCmd())
	return root
}
