// Package visualize implements the "load and visualize" action: up to
// MaxFiles selected files are fetched, parsed and charted independently and
// returned in fixed slots, one per file, in selection order.
package visualize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomasbasham/bucketview/internal/chart"
	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/storage"
	"github.com/tomasbasham/bucketview/internal/table"
)

const (
	DefaultMaxFiles    = 2
	DefaultPreviewRows = 50
)

// Options configures a Run invocation.
type Options struct {
	// MaxFiles caps the number of files loaded; extra selections are dropped
	// with a warning. Defaults to 2 if zero.
	MaxFiles int

	// PreviewRows caps the rows returned for display. The chart is always
	// selected from the full table. Defaults to 50 if zero.
	PreviewRows int

	Selector *chart.Selector
	Logger   zerolog.Logger
}

// Slot is the outcome for one selected file. A failed slot carries Error and
// no preview; it does not affect the other slots.
type Slot struct {
	File      listing.FileEntry `json:"file"`
	Preview   *table.Table      `json:"preview,omitempty"`
	TotalRows int               `json:"total_rows"`
	Chart     *chart.Spec       `json:"chart,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind storage.Kind      `json:"error_kind,omitempty"`

	err error
}

// Err returns the load failure for the slot, if any.
func (s *Slot) Err() error { return s.err }

// Result holds one slot per loaded file, in selection order.
type Result struct {
	Slots    []Slot   `json:"slots"`
	Warnings []string `json:"warnings,omitempty"`
}

// Run loads the selected files concurrently. It never fails as a whole:
// per-file failures are reported on their slot.
func Run(ctx context.Context, h storage.Handle, files []listing.FileEntry, opts Options) *Result {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	selector := opts.Selector
	if selector == nil {
		selector = chart.NewSelector(chart.Config{})
	}

	result := &Result{}
	if len(files) > maxFiles {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("You selected more than %d files. Only the first %d will be used.", maxFiles, maxFiles))
		files = files[:maxFiles]
	}

	result.Slots = make([]Slot, len(files))

	// Failures are recorded on their slot rather than returned, so one bad
	// file never cancels its siblings and Wait always reports nil.
	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			result.Slots[i] = loadSlot(ctx, h, f, previewRows, selector, opts.Logger)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func loadSlot(ctx context.Context, h storage.Handle, f listing.FileEntry, previewRows int, selector *chart.Selector, log zerolog.Logger) Slot {
	slot := Slot{File: f}

	t, err := table.Load(ctx, h, f)
	if err != nil {
		log.Warn().Err(err).Str("file", f.FullPath).Msg("failed to load file")
		slot.err = err
		slot.Error = storage.Message(err)
		slot.ErrorKind = storage.KindOf(err)
		return slot
	}

	spec := selector.Select(t)
	log.Debug().
		Str("file", f.FullPath).
		Int("rows", len(t.Rows)).
		Int("columns", len(t.Columns)).
		Str("chart", string(spec.Kind)).
		Msg("loaded file")

	slot.Preview = t.Head(previewRows)
	slot.TotalRows = len(t.Rows)
	slot.Chart = &spec
	return slot
}
