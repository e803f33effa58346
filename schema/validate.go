package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSchema is wrapped by every ValidationError.
var ErrInvalidSchema = errors.New("invalid schema")

// Problem is a single invariant violation.
type Problem struct {
	// Location is the qualified name of the offending message or enum.
	Location string

	// Detail describes the violation.
	Detail string
}

func (p Problem) String() string {
	return p.Location + ": " + p.Detail
}

// ValidationError lists every invariant violation found in a file.
type ValidationError struct {
	File     string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", e.File, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSchema
}

// Validate checks that field numbers are unique within each message and
// that enum numbers are unique within each enum once policy is applied.
// It returns nil or a *ValidationError.
func Validate(f *File, policy ZeroPolicy) error {
	var problems []Problem
	Walk(&f.Scope, func(n *Node) {
		switch n.Kind {
		case KindMessage:
			problems = append(problems, checkFieldNumbers(n)...)
		case KindEnum:
			problems = append(problems, checkEnumNumbers(n, policy)...)
		}
	})
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{File: f.Name, Problems: problems}
}

func checkFieldNumbers(n *Node) []Problem {
	seen := make(map[int][]string)
	for _, field := range n.AllFields() {
		seen[field.Number] = append(seen[field.Number], field.Name)
	}
	var problems []Problem
	for _, num := range sortedKeys(seen) {
		if names := seen[num]; len(names) > 1 {
			problems = append(problems, Problem{
				Location: n.QualifiedName(),
				Detail:   fmt.Sprintf("field number %d used by %s", num, strings.Join(names, ", ")),
			})
		}
	}
	for _, field := range n.AllFields() {
		if field.Number <= 0 {
			problems = append(problems, Problem{
				Location: n.QualifiedName(),
				Detail:   fmt.Sprintf("field %s has non-positive number %d", field.Name, field.Number),
			})
		}
	}
	return problems
}

func checkEnumNumbers(n *Node, policy ZeroPolicy) []Problem {
	seen := make(map[int][]string)
	for _, v := range n.EffectiveValues(policy) {
		seen[v.Number] = append(seen[v.Number], v.Name)
	}
	var problems []Problem
	for _, num := range sortedKeys(seen) {
		if names := seen[num]; len(names) > 1 {
			problems = append(problems, Problem{
				Location: n.QualifiedName(),
				Detail:   fmt.Sprintf("enum value %d used by %s", num, strings.Join(names, ", ")),
			})
		}
	}
	return problems
}

func sortedKeys(m map[int][]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
