package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/bucketview/internal/config"
	"github.com/tomasbasham/bucketview/internal/logger"
)

var (
	rootLong = templates.LongDesc(`
		Browse Google Cloud Storage and Amazon S3 buckets for tabular files
		(csv, xls, xlsx), load them and pick a chart for each.`)

	rootExamples = templates.Examples(`
		# List a public GCS folder
		bucketview ls gs://my-bucket/data/

		# Load two files from an S3 folder with a static key
		bucketview show s3://my-bucket/data/ a.csv b.xlsx --anonymous=false \
			--access-key-id AKIA... --secret-access-key ...

		# Serve the HTTP API
		bucketview serve --port 9090`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// BucketViewOptions defines the options shared by every bucketview command.
type BucketViewOptions struct {
	ConfigPath string
	EnvFile    string

	// Config and Logger are populated before any subcommand runs.
	Config *config.Config
	Logger zerolog.Logger

	iooption.IOStreams
}

// NewBucketViewOptions provides an initialised BucketViewOptions instance.
func NewBucketViewOptions(streams iooption.IOStreams) *BucketViewOptions {
	return &BucketViewOptions{
		IOStreams: streams,
		Logger:    zerolog.Nop(),
	}
}

// NewRootCommand creates the `bucketview` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewBucketViewOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `bucketview` command and its nested
// children.
func NewRootCommandWithArgs(o *BucketViewOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "bucketview [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Cloud bucket browser for tabular files",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.Load()
		},
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&o.ConfigPath, "config", "", "Path to a YAML configuration file")
	pflags.StringVar(&o.EnvFile, "env-file", ".env", "Path to a .env file loaded into the environment if present")

	cmd.AddCommand(NewListCommand(NewListOptions(o)))
	cmd.AddCommand(NewShowCommand(NewShowOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))

	// The globlal normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

// Load reads the configuration and builds the logger. It is a no-op once a
// configuration is present, which lets tests inject one.
func (o *BucketViewOptions) Load() error {
	if o.Config != nil {
		return nil
	}
	cfg, err := config.Load(config.Options{ConfigFile: o.ConfigPath, EnvFile: o.EnvFile})
	if err != nil {
		return err
	}
	o.Config = cfg
	o.Logger = logger.New(cfg.Log, o.ErrOut)
	return nil
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
