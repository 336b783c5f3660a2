package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kubev2v/doc-processor/internal/config"
	"github.com/kubev2v/doc-processor/internal/document"
	"github.com/kubev2v/doc-processor/pkg/log"
)

type ProcessDocumentOptions struct {
	config    *config.Config
	configErr error
	logLevel  string
	out       io.Writer
}

// DefaultProcessDocumentOptions reads the converter settings from the
// environment; flags override them.
func DefaultProcessDocumentOptions() *ProcessDocumentOptions {
	cfg, err := config.New()
	if err != nil {
		cfg = &config.Config{Converter: &config.ConverterConfig{}, S3: &config.S3Config{}}
	}
	return &ProcessDocumentOptions{
		config:    cfg,
		configErr: err,
		logLevel:  "warn",
	}
}

func NewCmdProcessDocument() *cobra.Command {
	o := DefaultProcessDocumentOptions()
	cmd := &cobra.Command{
		Use:           "process-document <input_path> <chunks_path> <markdown_path>",
		Short:         "Convert a document into JSON chunks and markdown",
		Long:          "Convert a local file or URL into a JSON array of chunk texts and a markdown rendering.\n\nSupported formats: " + supportedFormats() + ".",
		Example:       "process-document ./report.pdf ./report.json ./report.md\nprocess-document https://example.com/page.html page.json page.md",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
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

func (o *ProcessDocumentOptions) Bind(fs *pflag.FlagSet) {
	fs.IntVar(&o.config.Converter.MaxChunkTokens, "max-tokens", o.config.Converter.MaxChunkTokens, "Upper bound of a chunk in word tokens")
	fs.IntVar(&o.config.Converter.MinChunkTokens, "min-tokens", o.config.Converter.MinChunkTokens, "Chunks under this size are merged with their peers")
	fs.DurationVar(&o.config.Converter.HTTPTimeout, "http-timeout", o.config.Converter.HTTPTimeout, "Timeout for downloading URL inputs")
	fs.Int64Var(&o.config.Converter.MaxFileSize, "max-file-size", o.config.Converter.MaxFileSize, "Largest accepted input in bytes")
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "Log level")
}

func (o *ProcessDocumentOptions) Complete(cmd *cobra.Command, args []string) error {
	o.out = cmd.OutOrStdout()
	if o.configErr != nil {
		return fmt.Errorf("invalid configuration: %w", o.configErr)
	}
	return nil
}

func (o *ProcessDocumentOptions) Validate(args []string) error {
	if err := checkInput(args[0]); err != nil {
		var notFound *ErrInputNotFound
		if errors.As(err, &notFound) {
			fmt.Fprintf(o.out, "Error: Input file '%s' does not exist.\n", args[0])
		}
		return err
	}
	return nil
}

func (o *ProcessDocumentOptions) Run(ctx context.Context, args []string) error {
	undo := log.Setup(o.logLevel)
	defer undo()

	conv, err := document.NewConverter(o.config)
	if err != nil {
		fmt.Fprintf(o.out, "Error processing document: %s\n", err)
		return err
	}

	if _, err := document.NewProcessor(conv).ProcessDocument(ctx, args[0], args[1], args[2]); err != nil {
		fmt.Fprintf(o.out, "Error processing document: %s\n", err)
		return err
	}

	fmt.Fprintln(o.out, "Document processing completed successfully!")
	return nil
}
