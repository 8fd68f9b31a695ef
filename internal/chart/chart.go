// Package chart decides how a loaded table should be visualised. The
// decision is a priority-ordered list of rules; the first rule that matches
// wins and a table no rule accepts gets a None spec. Selection never fails.
package chart

import "fmt"

// Kind is the chart representation chosen for a table.
type Kind string

const (
	KindTimeSeries Kind = "time_series"
	KindBar        Kind = "bar"
	KindLine       Kind = "line"
	KindNone       Kind = "none"
)

// Reasons attached to None specs.
const (
	ReasonEmptyTable = "table is empty"
	ReasonNoNumeric  = "no numeric columns to plot"
)

// Spec is a tagged variant: exactly one of TimeSeries, Bar or Line is set
// according to Kind, and Reason is set only for KindNone.
type Spec struct {
	Kind       Kind        `json:"kind"`
	Title      string      `json:"title,omitempty"`
	TimeSeries *TimeSeries `json:"time_series,omitempty"`
	Bar        *Bar        `json:"bar,omitempty"`
	Line       *Line       `json:"line,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// TimeSeries plots Series against the X column.
type TimeSeries struct {
	X      string   `json:"x"`
	Series []string `json:"series"`
}

// Bar plots ValueCol per CategoryCol.
type Bar struct {
	CategoryCol string `json:"category_col"`
	ValueCol    string `json:"value_col"`
}

// Line plots every numeric column against the row index.
type Line struct {
	NumericCols []string `json:"numeric_cols"`
}

// None builds a spec explaining why nothing is plotted.
func None(reason string) Spec {
	return Spec{Kind: KindNone, Reason: reason}
}

// String summarises the spec for terminal output.
func (s Spec) String() string {
	switch {
	case s.Kind == KindTimeSeries && s.TimeSeries != nil:
		return fmt.Sprintf("time series: %v over %q", s.TimeSeries.Series, s.TimeSeries.X)
	case s.Kind == KindBar && s.Bar != nil:
		return fmt.Sprintf("bar: %q by %q", s.Bar.ValueCol, s.Bar.CategoryCol)
	case s.Kind == KindLine && s.Line != nil:
		return fmt.Sprintf("line: %v over row index", s.Line.NumericCols)
	case s.Kind != KindNone && s.Kind != "":
		return string(s.Kind)
	}
	return "none: " + s.Reason
}
