package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/bucketview/internal/chart"
	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/logger"
	"github.com/tomasbasham/bucketview/internal/storage"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

// ShowOptions defines the options for the `show` command.
type ShowOptions struct {
	*BucketViewOptions
	credentialFlags

	connect storage.Connector

	URI    storage.URI
	Files  []string
	Output string
	input  storage.CredentialInput
}

var (
	showLong = templates.LongDesc(`
		Load files from a bucket folder and choose a chart for each. At most
		max_files files are loaded; the rest are ignored with a warning. Each
		file prints a preview of its first rows and the chosen chart.`)

	showExample = templates.Examples(`
		# Compare two CSV files side by side
		bucketview show gs://my-bucket/runs/ before.csv after.csv

		# Emit the result as JSON
		bucketview show s3://my-bucket/runs/ metrics.xlsx -o json`)
)

func NewShowOptions(root *BucketViewOptions) *ShowOptions {
	return &ShowOptions{
		BucketViewOptions: root,
		connect:           connectAndCheck,
	}
}

func NewShowCommand(o *ShowOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "show URI FILE...",
		DisableFlagsInUseLine: true,
		Short:                 "Load files and choose charts",
		Long:                  showLong,
		Example:               showExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	o.credentialFlags.AddFlags(cmd.Flags())
	cmd.Flags().StringVarP(&o.Output, "output", "o", outputText, "Output format: text or json")

	return cmd
}

func (o *ShowOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("a URI and at least one file are required")
	}
	uri, err := storage.ParseURI(args[0])
	if err != nil {
		return cliError(err)
	}
	o.URI = uri
	o.Files = args[1:]

	o.input, err = o.credentialFlags.Input(cmd)
	return err
}

func (o *ShowOptions) Validate() error {
	return validateOutput(o.Output)
}

func (o *ShowOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Component(o.Logger, "show")

	h, err := connect(ctx, o.connect, o.URI, o.input, log)
	if err != nil {
		return err
	}
	defer h.Close()

	l, err := listing.New(o.Config.Listing()).List(ctx, h, o.URI.Prefix)
	if err != nil {
		return cliError(err)
	}

	files := make([]listing.FileEntry, 0, len(o.Files))
	for _, name := range o.Files {
		f, ok := l.Lookup(name)
		if !ok {
			return fmt.Errorf("file %q not found in %s", name, o.URI)
		}
		files = append(files, f)
	}

	result := visualize.Run(ctx, h, files, visualize.Options{
		MaxFiles:    o.Config.MaxFiles,
		PreviewRows: o.Config.PreviewRows,
		Selector:    chart.NewSelector(o.Config.Chart()),
		Logger:      logger.Component(o.Logger, "visualize"),
	})
	for _, w := range result.Warnings {
		fmt.Fprintf(o.ErrOut, "Warning: %s\n", w)
	}

	if o.Output == outputJSON {
		return writeJSON(o.Out, result)
	}
	return printResult(o.Out, result)
}
