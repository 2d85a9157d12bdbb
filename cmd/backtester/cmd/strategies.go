package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/strategy"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the built-in strategies and their default parameters",
	Run: func(cmd *cobra.Command, args []string) {
		reg := strategy.NewRegistry()
		reg.Register(strategy.NewEMACross(strategy.EMACrossDefaults()))
		reg.Register(strategy.NewRSIReversal(strategy.RSIReversalDefaults()))
		reg.Register(strategy.NewRSIScalping(strategy.RSIScalpingDefaults()))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPARAMETER\tDEFAULT")
		for _, name := range reg.List() {
			s, _ := reg.Get(name)
			params := s.Params()
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				label := ""
				if i == 0 {
					label = name
				}
				fmt.Fprintf(w, "%s\t%s\t%v\n", label, k, params[k])
			}
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
