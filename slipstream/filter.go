package slipstream

import (
	"fmt"
	"strings"
)

// A Filter is a CIMI filter expression built from equality clauses joined by
// "and". The query language supports more, but nothing in this repository
// needs disjunctions or grouping.
type Filter struct {
	clauses []string
}

// Eq appends an attribute="value" clause and returns the filter for chaining.
func (f *Filter) Eq(attribute, value string) *Filter {
	f.clauses = append(f.clauses, fmt.Sprintf("%s=%q", attribute, value))
	return f
}

// String renders the filter expression. An empty filter renders as "".
func (f *Filter) String() string {
	return strings.Join(f.clauses, " and ")
}
