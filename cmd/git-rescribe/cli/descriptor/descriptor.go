// Package descriptor models the commit descriptors a user edits in the plan
// file, and parses and renders that file.
package descriptor

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identityPattern = regexp.MustCompile(`^(.+) <(.+@.+)>$`)

// Signature is an identity ("Name <email>") and the date attached to it.
type Signature struct {
	Identity string
	Date     time.Time
}

// NewSignature builds a signature from a name, email and date.
func NewSignature(name, email string, when time.Time) Signature {
	return Signature{Identity: FormatIdentity(name, email), Date: when}
}

// FormatIdentity renders "Name <email>".
func FormatIdentity(name, email string) string {
	return fmt.Sprintf("%s <%s>", name, email)
}

// SplitIdentity splits "Name <email>" into its name and email.
func SplitIdentity(identity string) (name, email string, ok bool) {
	m := identityPattern.FindStringSubmatch(identity)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Name returns the name part of the identity.
func (s Signature) Name() string {
	name, _, _ := SplitIdentity(s.Identity)
	return name
}

// Email returns the email part of the identity.
func (s Signature) Email() string {
	_, email, _ := SplitIdentity(s.Identity)
	return email
}

// SameDate reports whether two dates are the same instant with the same
// UTC offset. Commit objects record the offset, so both must match.
func SameDate(a, b time.Time) bool {
	_, offA := a.Zone()
	_, offB := b.Zone()
	return a.Equal(b) && offA == offB
}

// FormatDate renders a date the way the plan file stores it.
func FormatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseDate parses an ISO-8601 date with an explicit offset.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be ISO-8601 with offset, e.g. 2025-01-01T00:00:00Z", s)
	}
	return t, nil
}

// TrimMessage drops trailing newlines from a commit message.
func TrimMessage(msg string) string {
	return strings.TrimRight(msg, "\n")
}

// Commit is one commit descriptor: the declarative description of a commit
// in the target history.
type Commit struct {
	Author    Signature
	Committer Signature
	Content   Content
	// Message has its trailing newline trimmed.
	Message string
	Parents []ParentRef
}

// OriginalHash returns the commit this descriptor was derived from, if any.
func (c Commit) OriginalHash() (string, bool) {
	return c.Content.SourceCommit()
}
