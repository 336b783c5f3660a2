package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type StatusOptions struct {
	GlobalOptions
	out io.Writer
}

func NewCmdStatus() *cobra.Command {
	o := &StatusOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Print the number of jobs in each state",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.out = cmd.OutOrStdout()
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())

	return cmd
}

func (o *StatusOptions) Run(ctx context.Context, args []string) error {
	client := o.Client()
	defer client.Close()

	counts, err := client.Counts(ctx)
	if err != nil {
		return fmt.Errorf("reading queue %s: %w", client.Queue(), err)
	}

	w := tabwriter.NewWriter(o.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tWAIT\tACTIVE\tCOMPLETED\tFAILED")
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", client.Queue(), counts.Wait, counts.Active, counts.Completed, counts.Failed)
	return w.Flush()
}
