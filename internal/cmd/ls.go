package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/logger"
	"github.com/tomasbasham/bucketview/internal/storage"
)

// ListOptions defines the options for the `ls` command.
type ListOptions struct {
	*BucketViewOptions
	credentialFlags

	// connect is storage.Connect outside of tests.
	connect storage.Connector

	URI    storage.URI
	Output string
	input  storage.CredentialInput
}

var (
	listLong = templates.LongDesc(`
		List the sub-folders and tabular files directly under a bucket
		prefix. Only files with an allowed extension are shown.`)

	listExample = templates.Examples(`
		# List the root of a public bucket
		bucketview ls gs://my-bucket

		# List a private S3 folder
		bucketview ls s3://my-bucket/reports/ --access-key-id AKIA... --secret-access-key ...`)
)

func NewListOptions(root *BucketViewOptions) *ListOptions {
	return &ListOptions{
		BucketViewOptions: root,
		connect:           connectAndCheck,
	}
}

func NewListCommand(o *ListOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "ls URI",
		DisableFlagsInUseLine: true,
		Short:                 "List a bucket prefix",
		Long:                  listLong,
		Example:               listExample,
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

func (o *ListOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one URI is required")
	}
	uri, err := storage.ParseURI(args[0])
	if err != nil {
		return cliError(err)
	}
	o.URI = uri

	o.input, err = o.credentialFlags.Input(cmd)
	return err
}

func (o *ListOptions) Validate() error {
	return validateOutput(o.Output)
}

func (o *ListOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Component(o.Logger, "ls")

	h, err := connect(ctx, o.connect, o.URI, o.input, log)
	if err != nil {
		return err
	}
	defer h.Close()

	l, err := listing.New(o.Config.Listing()).List(ctx, h, o.URI.Prefix)
	if err != nil {
		return cliError(err)
	}
	log.Debug().Int("subfolders", len(l.Subfolders)).Int("files", len(l.Files)).Msg("listed prefix")

	if o.Output == outputJSON {
		return writeJSON(o.Out, l)
	}
	return printListing(o.Out, l)
}
