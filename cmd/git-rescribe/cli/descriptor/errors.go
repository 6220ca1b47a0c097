package descriptor

import (
	"fmt"
	"strings"
)

// Problem is one schema violation in a plan file.
type Problem struct {
	// Index is the position of the offending commit, or -1 for file-level problems.
	Index  int
	Field  string
	Reason string
}

func (p Problem) String() string {
	if p.Index < 0 {
		if p.Field == "" {
			return p.Reason
		}
		return p.Field + ": " + p.Reason
	}
	return fmt.Sprintf("commits[%d].%s: %s", p.Index, p.Field, p.Reason)
}

// ValidationError reports every schema violation found in a plan file.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid plan: " + e.Problems[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid plan (%d problems):", len(e.Problems))
	for _, p := range e.Problems {
		b.WriteString("\n  ")
		b.WriteString(p.String())
	}
	return b.String()
}
