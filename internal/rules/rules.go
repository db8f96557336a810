package rules

import "sort"

// #region rule

// Rule is one row of an ordered rule table: when Match holds for the input,
// the table yields Result. Lower Priority values are evaluated first.
type Rule[In any, Out any] struct {
	Name     string
	Priority int
	Match    func(In) bool
	Result   Out
}

// #endregion rule

// #region table

// Table is an immutable, priority-ordered list of rules. Evaluation is
// first-match-wins; rules with equal priority keep declaration order.
type Table[In any, Out any] struct {
	rules []Rule[In, Out]
}

// NewTable copies and sorts the given rules by priority.
func NewTable[In any, Out any](rules ...Rule[In, Out]) *Table[In, Out] {
	sorted := make([]Rule[In, Out], len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Table[In, Out]{rules: sorted}
}

// First returns the result and name of the first matching rule.
// ok is false when no rule matched; a nil Match never matches.
func (t *Table[In, Out]) First(in In) (out Out, name string, ok bool) {
	for _, r := range t.rules {
		if r.Match != nil && r.Match(in) {
			return r.Result, r.Name, true
		}
	}
	return out, "", false
}

// Matching lists the names of every rule that matches, in evaluation order.
func (t *Table[In, Out]) Matching(in In) []string {
	var names []string
	for _, r := range t.rules {
		if r.Match != nil && r.Match(in) {
			names = append(names, r.Name)
		}
	}
	return names
}

// Names returns rule names in evaluation order.
func (t *Table[In, Out]) Names() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of rules.
func (t *Table[In, Out]) Len() int {
	return len(t.rules)
}

// With returns a new table containing t's rules plus extra.
func (t *Table[In, Out]) With(extra ...Rule[In, Out]) *Table[In, Out] {
	all := make([]Rule[In, Out], 0, len(t.rules)+len(extra))
	all = append(all, t.rules...)
	all = append(all, extra...)
	return NewTable(all...)
}

// #endregion table
