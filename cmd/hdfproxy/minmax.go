package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-hdfproxy/proxy"
)

func minmaxCmd() *cobra.Command {
	var components int
	cmd := &cobra.Command{
		Use:   "minmax <file> <group> <name>",
		Short: "Print the per-component range of a floating point dataset.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			p, err := proxy.OpenLocal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			mins, maxs, ok, err := p.DatasetMinMax(cmd.Context(), args[1], args[2], components)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no values")
				return nil
			}
			for i := range mins {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%g\t%g\n", i, mins[i], maxs[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&components, "components", 1, "Number of interleaved components per value.")
	return cmd
}
