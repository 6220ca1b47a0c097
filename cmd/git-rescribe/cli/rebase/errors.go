package rebase

import (
	"errors"
	"fmt"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
)

// ErrDeclined is returned by Execute when the confirmation callback declines.
var ErrDeclined = errors.New("rebase declined")

// ReferenceError reports a parent reference that cannot be resolved.
type ReferenceError struct {
	Index  int
	Parent descriptor.ParentRef
	Reason string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("commits[%d]: cannot resolve parent %q: %s", e.Index, e.Parent.String(), e.Reason)
}
