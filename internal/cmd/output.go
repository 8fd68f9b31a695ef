package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/storage"
	"github.com/tomasbasham/bucketview/internal/table"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputText, outputJSON)
}

func connectAndCheck(ctx context.Context, uri storage.URI, creds storage.Credentials) (storage.Handle, error) {
	return storage.Connect(ctx, uri, creds)
}

// connect resolves the credential variant and opens a handle, logging the
// attempt without secret material.
func connect(ctx context.Context, connector storage.Connector, uri storage.URI, in storage.CredentialInput, log zerolog.Logger) (storage.Handle, error) {
	creds, err := in.Credentials(uri.Scheme)
	if err != nil {
		return nil, cliError(err)
	}

	log = log.With().Str("uri", uri.String()).Str("credentials", storage.Variant(creds)).Logger()
	h, err := connector(ctx, uri, creds)
	if err != nil {
		log.Debug().Err(err).Msg("connect failed")
		return nil, cliError(err)
	}
	log.Debug().Msg("connected")
	return h, nil
}

// displayError prints a storage error as its user-facing message while
// staying matchable with errors.Is.
type displayError struct{ err error }

func (e *displayError) Error() string { return storage.Message(e.err) }
func (e *displayError) Unwrap() error { return e.err }

func cliError(err error) error {
	var se *storage.Error
	if !errors.As(err, &se) {
		return err
	}
	return &displayError{err: err}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printListing(w io.Writer, l *listing.DirectoryListing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", l.URI)
	for _, name := range l.Subfolders {
		fmt.Fprintf(tw, "%s/\tfolder\n", name)
	}
	for _, f := range l.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Extension, f.FullPath)
	}
	if len(l.Subfolders) == 0 && len(l.Files) == 0 {
		fmt.Fprintln(tw, "(empty)")
	}
	return tw.Flush()
}

func printResult(w io.Writer, r *visualize.Result) error {
	for i, slot := range r.Slots {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%d] %s\n", i+1, slot.File.FullPath)
		if slot.Error != "" {
			fmt.Fprintf(w, "error (%s): %s\n", slot.ErrorKind, slot.Error)
			continue
		}
		if slot.Chart.Title != "" {
			fmt.Fprintf(w, "chart: %s (%s)\n", slot.Chart.Title, slot.Chart)
		} else {
			fmt.Fprintf(w, "chart: %s\n", slot.Chart)
		}
		if err := printTable(w, slot.Preview); err != nil {
			return err
		}
		if n := len(slot.Preview.Rows); n < slot.TotalRows {
			fmt.Fprintf(w, "(showing %d of %d rows)\n", n, slot.TotalRows)
		}
	}
	return nil
}

func printTable(w io.Writer, t *table.Table) error {
	if t == nil || len(t.Columns) == 0 {
		fmt.Fprintln(w, "(no data)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
