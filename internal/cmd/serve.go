package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/bucketview/internal/chart"
	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/logger"
	"github.com/tomasbasham/bucketview/internal/server"
	"github.com/tomasbasham/bucketview/internal/session"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

// ServeOptions defines the options for the `serve` command.
type ServeOptions struct {
	*BucketViewOptions

	Port int
}

var (
	serveLong = templates.LongDesc(`
		Start the bucketview HTTP server. Each connect creates an in-memory
		session holding the bucket handle; credentials are never written to
		disk.`)

	serveExample = templates.Examples(`
		# Start on the configured port (default 8080)
		bucketview serve

		# Start on a custom port
		bucketview serve --port 9090`)
)

func NewServeOptions(root *BucketViewOptions) *ServeOptions {
	return &ServeOptions{BucketViewOptions: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the bucketview HTTP server",
		Long:    serveLong,
		Example: serveExample,
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

	cmd.Flags().IntVarP(&o.Port, "port", "p", 0, "Port to listen on (default: server.port from config)")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("port") {
		o.Port = o.Config.Server.Port
	}
	return nil
}

func (o *ServeOptions) Validate() error {
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got: %d)", o.Port)
	}
	return nil
}

func (o *ServeOptions) Run() error {
	srv := o.newServer()

	addr := fmt.Sprintf(":%d", o.Port)
	log := logger.Component(o.Logger, "server")
	log.Info().Str("addr", addr).Msg("starting bucketview server")
	return srv.ListenAndServe(addr)
}

func (o *ServeOptions) newServer() *server.Server {
	store := session.NewMemoryStore(o.Config.Server.SessionTTL)
	opts := visualize.Options{
		MaxFiles:    o.Config.MaxFiles,
		PreviewRows: o.Config.PreviewRows,
		Selector:    chart.NewSelector(o.Config.Chart()),
		Logger:      logger.Component(o.Logger, "visualize"),
	}

	return server.New(
		store,
		connectAndCheck,
		listing.New(o.Config.Listing()),
		opts,
		logger.Component(o.Logger, "server"),
	)
}
