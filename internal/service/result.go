package service

import "fmt"

// Class is the classification of one previous-snapshot reference database.
type Class int

const (
	// Missing means no record with the same canonical name exists in the current snapshot.
	Missing Class = iota
	// Reduced means the current referrer count is lower than the previous one.
	Reduced
	// Stable means the current referrer count is equal to or higher than the previous one.
	Stable
)

func (c Class) String() string {
	switch c {
	case Missing:
		return "missing"
	case Reduced:
		return "reduced"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// MarshalText encodes the class by name in JSON and YAML.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Outcome is the classification of a single canonical name.
// Counts are only meaningful for Reduced and Stable outcomes.
type Outcome struct {
	Class    Class
	Name     string
	Label    string
	OldCount int
	NewCount int
}

// Message renders the report line for the outcome.
func (o Outcome) Message() string {
	switch o.Class {
	case Missing:
		return fmt.Sprintf("ERROR: %s is missing in the current database", o.Name)
	case Reduced:
		return fmt.Sprintf("WARN: %s has a lower referrer count than previously: %d (current) vs %d (previous)",
			o.Label, o.NewCount, o.OldCount)
	default:
		return fmt.Sprintf("%s - Current: %d; Previous %d", o.Label, o.NewCount, o.OldCount)
	}
}

// ComparisonResult holds the outcomes of one comparison run in name order.
// It is immutable once built; accessors return copies.
type ComparisonResult struct {
	outcomes []Outcome
}

// Summary counts outcomes per class.
type Summary struct {
	Total   int `json:"total" yaml:"total"`
	Missing int `json:"missing" yaml:"missing"`
	Reduced int `json:"reduced" yaml:"reduced"`
	Stable  int `json:"stable" yaml:"stable"`
}

// Outcomes returns all outcomes in comparison order.
func (r ComparisonResult) Outcomes() []Outcome {
	return append([]Outcome(nil), r.outcomes...)
}

// Of returns the outcomes of one class in comparison order.
func (r ComparisonResult) Of(class Class) []Outcome {
	var out []Outcome
	for _, o := range r.outcomes {
		if o.Class == class {
			out = append(out, o)
		}
	}
	return out
}

// Missing returns the Missing outcomes.
func (r ComparisonResult) Missing() []Outcome { return r.Of(Missing) }

// Reduced returns the Reduced outcomes.
func (r ComparisonResult) Reduced() []Outcome { return r.Of(Reduced) }

// Stable returns the Stable outcomes.
func (r ComparisonResult) Stable() []Outcome { return r.Of(Stable) }

// Messages returns the rendered report lines of one class.
func (r ComparisonResult) Messages(class Class) []string {
	outcomes := r.Of(class)
	msgs := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		msgs = append(msgs, o.Message())
	}
	return msgs
}

// Summary counts the outcomes per class.
func (r ComparisonResult) Summary() Summary {
	s := Summary{Total: len(r.outcomes)}
	for _, o := range r.outcomes {
		switch o.Class {
		case Missing:
			s.Missing++
		case Reduced:
			s.Reduced++
		case Stable:
			s.Stable++
		}
	}
	return s
}

// HasRegressions reports whether any reference database went missing or lost referrers.
func (r ComparisonResult) HasRegressions() bool {
	s := r.Summary()
	return s.Missing > 0 || s.Reduced > 0
}

// resultBuilder accumulates outcomes and hands out the finished result once.
type resultBuilder struct {
	outcomes []Outcome
}

func newResultBuilder(capacity int) *resultBuilder {
	return &resultBuilder{outcomes: make([]Outcome, 0, capacity)}
}

func (b *resultBuilder) add(o Outcome) {
	b.outcomes = append(b.outcomes, o)
}

func (b *resultBuilder) build() ComparisonResult {
	r := ComparisonResult{outcomes: b.outcomes}
	b.outcomes = nil
	return r
}

// OutcomeView is the serializable form of an Outcome.
// Counts are omitted for Missing outcomes, where they were never queried.
type OutcomeView struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	OldCount *int   `json:"previous_count,omitempty" yaml:"previous_count,omitempty"`
	NewCount *int   `json:"current_count,omitempty" yaml:"current_count,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// ResultView is the serializable form of a ComparisonResult, used for JSON and YAML export.
type ResultView struct {
	Missing []OutcomeView `json:"missing" yaml:"missing"`
	Reduced []OutcomeView `json:"reduced" yaml:"reduced"`
	Stable  []OutcomeView `json:"stable" yaml:"stable"`
	Summary Summary       `json:"summary" yaml:"summary"`
}

// View converts the result into its serializable form.
func (r ComparisonResult) View() ResultView {
	return ResultView{
		Missing: viewsOf(r.Missing()),
		Reduced: viewsOf(r.Reduced()),
		Stable:  viewsOf(r.Stable()),
		Summary: r.Summary(),
	}
}

func viewsOf(outcomes []Outcome) []OutcomeView {
	views := make([]OutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := OutcomeView{Name: o.Name, Label: o.Label, Message: o.Message()}
		if o.Class != Missing {
			oldCount, newCount := o.OldCount, o.NewCount
			v.OldCount, v.NewCount = &oldCount, &newCount
		}
		views = append(views, v)
	}
	return views
}
