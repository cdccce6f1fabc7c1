package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cboone/expecter"
	"github.com/cboone/expecter/scenarios"
	"github.com/cboone/expecter/suite"
)

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, s := range scenarios.All() {
				fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
			}
			return tw.Flush()
		},
	}
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Load and compile suite files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				s, err := suite.Load(path)
				if err == nil {
					_, err = s.Compile()
				}
				if err != nil {
					failed++
					fmt.Fprintf(a.stdout, "FAIL  %s\n%v\n", path, err)
					continue
				}
				fmt.Fprintf(a.stdout, "ok    %s  %s (%d steps)\n", path, s.Name, len(s.Steps))
			}
			if failed > 0 {
				return &exitError{code: expecter.ExitFail}
			}
			return nil
		},
	}
}
