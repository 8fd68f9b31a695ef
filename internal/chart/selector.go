package chart

import (
	"github.com/tomasbasham/bucketview/internal/table"
)

// Default time-series columns.
const (
	DefaultTimeSeriesX = "Frame Number"
)

// DefaultTimeSeriesSeries are plotted against DefaultTimeSeriesX.
var DefaultTimeSeriesSeries = []string{"Procrustes Similarity", "Joint Angle Distance"}

// Config parameterises the default rule list.
type Config struct {
	// TimeSeriesX and TimeSeriesSeries name the columns that, when all
	// present, select a time-series chart.
	TimeSeriesX      string
	TimeSeriesSeries []string
}

// Rule inspects a non-empty table and returns a spec when it applies.
type Rule struct {
	Name  string
	Match func(t *table.Table) (Spec, bool)
}

// Selector applies rules in order.
type Selector struct {
	rules []Rule
}

// NewSelector builds a Selector over the default rules: time series, bar,
// line. Empty config fields take the defaults.
func NewSelector(cfg Config) *Selector {
	return NewSelectorWithRules(DefaultRules(cfg)...)
}

// NewSelectorWithRules builds a Selector over an explicit, ordered rule list.
func NewSelectorWithRules(rules ...Rule) *Selector {
	return &Selector{rules: rules}
}

// DefaultRules returns the rules in priority order.
func DefaultRules(cfg Config) []Rule {
	x := cfg.TimeSeriesX
	if x == "" {
		x = DefaultTimeSeriesX
	}
	series := cfg.TimeSeriesSeries
	if len(series) == 0 {
		series = DefaultTimeSeriesSeries
	}
	return []Rule{
		TimeSeriesRule(x, series),
		BarRule(),
		LineRule(),
	}
}

// Rules returns a copy of the selector's rule list.
func (s *Selector) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Select returns the spec of the first matching rule. An empty table or a
// table no rule accepts yields a None spec.
func (s *Selector) Select(t *table.Table) Spec {
	if t.Empty() {
		return None(ReasonEmptyTable)
	}
	for _, r := range s.rules {
		if spec, ok := r.Match(t); ok {
			return spec
		}
	}
	return None(ReasonNoNumeric)
}

// TimeSeriesRule matches tables holding x and every series column, whatever
// their position and whatever other columns exist.
func TimeSeriesRule(x string, series []string) Rule {
	series = append([]string(nil), series...)
	return Rule{
		Name: "time_series",
		Match: func(t *table.Table) (Spec, bool) {
			if !t.HasColumns(x) || !t.HasColumns(series...) {
				return Spec{}, false
			}
			return Spec{
				Kind:       KindTimeSeries,
				Title:      "Metrics over Frames",
				TimeSeries: &TimeSeries{X: x, Series: append([]string(nil), series...)},
			}, true
		},
	}
}

// BarRule matches tables with exactly one categorical column and at least
// one numeric column, plotting the leftmost numeric column per category.
func BarRule() Rule {
	return Rule{
		Name: "bar",
		Match: func(t *table.Table) (Spec, bool) {
			categorical := t.ColumnsOf(table.Categorical)
			numeric := t.ColumnsOf(table.Numeric)
			if len(categorical) != 1 || len(numeric) == 0 {
				return Spec{}, false
			}
			category, value := categorical[0].Name, numeric[0].Name
			return Spec{
				Kind:  KindBar,
				Title: "Bar: " + category + " vs " + value,
				Bar:   &Bar{CategoryCol: category, ValueCol: value},
			}, true
		},
	}
}

// LineRule matches any table with a numeric column.
func LineRule() Rule {
	return Rule{
		Name: "line",
		Match: func(t *table.Table) (Spec, bool) {
			numeric := t.ColumnsOf(table.Numeric)
			if len(numeric) == 0 {
				return Spec{}, false
			}
			cols := make([]string, len(numeric))
			for i, c := range numeric {
				cols[i] = c.Name
			}
			return Spec{
				Kind:  KindLine,
				Title: "Line plot (numeric columns)",
				Line:  &Line{NumericCols: cols},
			}, true
		},
	}
}
