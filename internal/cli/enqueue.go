package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kubev2v/doc-processor/internal/jobs"
	"github.com/kubev2v/doc-processor/internal/queue"
)

type EnqueueOptions struct {
	GlobalOptions
	attempts int
	name     string
	out      io.Writer
	args     jobs.DocumentJobArgs
}

func DefaultEnqueueOptions() *EnqueueOptions {
	return &EnqueueOptions{
		GlobalOptions: DefaultGlobalOptions(),
		attempts:      jobs.DefaultAttempts,
		name:          jobs.JobName,
	}
}

func NewCmdEnqueue() *cobra.Command {
	o := DefaultEnqueueOptions()
	cmd := &cobra.Command{
		Use:          "enqueue <input_path> <chunks_path> <markdown_path>",
		Short:        "Add a document job to the queue",
		Example:      "enqueue /data/in/report.pdf /data/out/report.json /data/out/report.md --attempts 3",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())

	return cmd
}

func (o *EnqueueOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.IntVar(&o.attempts, "attempts", o.attempts, "Number of times the job is tried before it is failed")
	fs.StringVar(&o.name, "name", o.name, "Job name")
}

func (o *EnqueueOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.out = cmd.OutOrStdout()
	o.args = jobs.DocumentJobArgs{
		InputFilePath:             args[0],
		ChunkedJSONOutputFilePath: args[1],
		MarkdownOutputFilePath:    args[2],
	}
	return nil
}

func (o *EnqueueOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", o.attempts)
	}
	return jobs.NewValidator().Struct(o.args)
}

func (o *EnqueueOptions) Run(ctx context.Context, args []string) error {
	client := o.Client()
	defer client.Close()

	id, err := client.Enqueue(ctx, o.name, o.args, queue.JobOpts{Attempts: o.attempts})
	if err != nil {
		return err
	}

	fmt.Fprintf(o.out, "job %s added to queue %s\n", id, client.Queue())
	return nil
}
