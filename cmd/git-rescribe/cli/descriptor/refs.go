package descriptor

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects where a commit's content tree comes from.
type Strategy int

const (
	// StrategyTree names a tree object directly.
	StrategyTree Strategy = iota + 1
	// StrategyCommit reuses the tree of the named commit.
	StrategyCommit
	// StrategyDiff is reserved for applying the named commit's diff. Diffs are
	// not applied yet; the named commit's tree is reused instead.
	StrategyDiff
)

var strategyNames = map[Strategy]string{
	StrategyTree:   "tree",
	StrategyCommit: "commit",
	StrategyDiff:   "diff",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

var (
	contentPattern   = regexp.MustCompile(`^(tree|diff|commit):([0-9a-f]{7,40})$`)
	rewrittenPattern = regexp.MustCompile(`^rewritten:([0-9a-f]{7,40})$`)
	hashPattern      = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Content is the parsed form of a "<strategy>:<hash>" content string.
type Content struct {
	Strategy Strategy
	Hash     string
}

// ParseContent parses a content string such as "commit:abc1234".
func ParseContent(s string) (Content, error) {
	m := contentPattern.FindStringSubmatch(s)
	if m == nil {
		return Content{}, fmt.Errorf("content %q must match (tree|diff|commit):<7-40 hex>", s)
	}
	var strategy Strategy
	switch m[1] {
	case "tree":
		strategy = StrategyTree
	case "commit":
		strategy = StrategyCommit
	default:
		strategy = StrategyDiff
	}
	return Content{Strategy: strategy, Hash: m[2]}, nil
}

// SourceCommit returns the commit a commit: or diff: content names.
func (c Content) SourceCommit() (string, bool) {
	if c.Strategy == StrategyCommit || c.Strategy == StrategyDiff {
		return c.Hash, true
	}
	return "", false
}

func (c Content) String() string {
	return c.Strategy.String() + ":" + c.Hash
}

// ParentKind distinguishes the three forms a parent reference can take.
type ParentKind int

const (
	// ParentPrevious refers to the entry immediately before this one in the plan.
	ParentPrevious ParentKind = iota + 1
	// ParentRewritten refers to whatever commit replaces an original commit.
	ParentRewritten
	// ParentHash is an existing commit used as-is.
	ParentHash
)

const previousKeyword = "previous"

// ParentRef is one entry of a descriptor's parent list.
type ParentRef struct {
	Kind ParentKind
	// Hash is empty for ParentPrevious.
	Hash string
}

// Previous returns a reference to the preceding plan entry.
func Previous() ParentRef { return ParentRef{Kind: ParentPrevious} }

// Rewritten returns a reference to the replacement of original commit hash.
func Rewritten(hash string) ParentRef { return ParentRef{Kind: ParentRewritten, Hash: hash} }

// Existing returns a reference to an out-of-plan commit.
func Existing(hash string) ParentRef { return ParentRef{Kind: ParentHash, Hash: hash} }

// ParseParent parses "previous", "rewritten:<hash>" or a bare hash.
func ParseParent(s string) (ParentRef, error) {
	if s == previousKeyword {
		return Previous(), nil
	}
	if m := rewrittenPattern.FindStringSubmatch(s); m != nil {
		return Rewritten(m[1]), nil
	}
	if hashPattern.MatchString(s) {
		return Existing(s), nil
	}
	return ParentRef{}, fmt.Errorf("parent %q must be %q, rewritten:<7-40 hex> or <7-40 hex>", s, previousKeyword)
}

func (p ParentRef) String() string {
	switch p.Kind {
	case ParentPrevious:
		return previousKeyword
	case ParentRewritten:
		return "rewritten:" + p.Hash
	default:
		return p.Hash
	}
}

// ShortHash abbreviates a hash to the seven characters used in plan files.
func ShortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// HashMatches reports whether two possibly-abbreviated hashes name the same object.
func HashMatches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
