package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# git-rescribe plan
#
# Edit the commits below, save and close the editor to apply them.
# Commits are listed oldest first and are recreated in this order.
#
#   author, committer  identity "Name <email>" and an ISO-8601 date
#   content            tree:<hash>    use this tree as-is
#                      commit:<hash>  use the tree of this commit
#                      diff:<hash>    reserved; currently uses the commit's tree
#   message            commit message
#   parents            previous          the commit listed just above
#                      rewritten:<hash>  whatever replaces original commit <hash>
#                      <hash>            an existing commit outside the plan
#
# A commit whose fields all still match its original commit is kept as-is.
# Run "git-rescribe --abort" to give up.

`

type rawFile struct {
	Commits []rawCommit `yaml:"commits"`
}

type rawSignature struct {
	Identity string `yaml:"identity"`
	Date     string `yaml:"date"`
}

type rawCommit struct {
	Author    rawSignature `yaml:"author"`
	Committer rawSignature `yaml:"committer"`
	Content   string       `yaml:"content"`
	Message   blockText    `yaml:"message"`
	Parents   flowList     `yaml:"parents"`
}

// blockText renders as a literal block scalar, or double-quoted when a
// literal block would not read back to the same text.
type blockText string

func (b blockText) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(b)}
	if b == "" {
		return node, nil
	}
	node.Value += "\n"
	node.Style = yaml.LiteralStyle
	if !literalSafe(node.Value) || !readsBack(node) {
		node.Style = yaml.DoubleQuotedStyle
	}
	return node, nil
}

// literalSafe rules out text a literal block cannot hold: leading blank
// lines or indentation, carriage returns and trailing whitespace.
func literalSafe(s string) bool {
	if strings.HasPrefix(s, "\n") || strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t") {
		return false
	}
	if strings.ContainsRune(s, '\r') {
		return false
	}
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if strings.TrimRight(line, " \t") != line {
			return false
		}
	}
	return true
}

// readsBack encodes node at the depth messages sit at in a plan file and
// checks the decoded text is unchanged.
func readsBack(node *yaml.Node) bool {
	wrapped := map[string][]map[string]*yaml.Node{"commits": {{"message": node}}}
	out, err := yaml.Marshal(wrapped)
	if err != nil {
		return false
	}
	var decoded struct {
		Commits []struct {
			Message string `yaml:"message"`
		} `yaml:"commits"`
	}
	if err := yaml.Unmarshal(out, &decoded); err != nil || len(decoded.Commits) != 1 {
		return false
	}
	return decoded.Commits[0].Message == node.Value
}

// flowList renders as an inline sequence.
type flowList []string

func (f flowList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, s := range f {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s})
	}
	return node, nil
}

// Marshal renders commits as a plan file.
func Marshal(commits []Commit) ([]byte, error) {
	file := rawFile{Commits: make([]rawCommit, 0, len(commits))}
	for _, c := range commits {
		parents := make(flowList, 0, len(c.Parents))
		for _, p := range c.Parents {
			parents = append(parents, p.String())
		}
		file.Commits = append(file.Commits, rawCommit{
			Author:    rawSignature{Identity: c.Author.Identity, Date: FormatDate(c.Author.Date)},
			Committer: rawSignature{Identity: c.Committer.Identity, Date: FormatDate(c.Committer.Date)},
			Content:   c.Content.String(),
			Message:   blockText(TrimMessage(c.Message)),
			Parents:   parents,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads a plan file and validates every descriptor in it.
// All schema violations are collected into a single *ValidationError;
// nothing is returned unless the whole file is valid.
func Parse(data []byte) ([]Commit, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file rawFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Problems: []Problem{{Index: -1, Reason: "plan file is empty"}}}
		}
		return nil, &ValidationError{Problems: []Problem{{Index: -1, Field: "yaml", Reason: err.Error()}}}
	}
	if len(file.Commits) == 0 {
		return nil, &ValidationError{Problems: []Problem{{Index: -1, Field: "commits", Reason: "plan contains no commits"}}}
	}

	var problems []Problem
	commits := make([]Commit, 0, len(file.Commits))
	for i, raw := range file.Commits {
		c, errs := validateCommit(i, raw)
		problems = append(problems, errs...)
		commits = append(commits, c)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return commits, nil
}

func validateCommit(index int, raw rawCommit) (Commit, []Problem) {
	var problems []Problem
	add := func(field string, err error) {
		problems = append(problems, Problem{Index: index, Field: field, Reason: err.Error()})
	}

	var c Commit
	var err error

	if c.Author, err = validateSignature(raw.Author); err != nil {
		add("author", err)
	}
	if c.Committer, err = validateSignature(raw.Committer); err != nil {
		add("committer", err)
	}
	if c.Content, err = ParseContent(strings.TrimSpace(raw.Content)); err != nil {
		add("content", err)
	}
	c.Message = TrimMessage(string(raw.Message))

	c.Parents = make([]ParentRef, 0, len(raw.Parents))
	for pos, s := range raw.Parents {
		ref, err := ParseParent(strings.TrimSpace(s))
		if err != nil {
			add(fmt.Sprintf("parents[%d]", pos), err)
			continue
		}
		if ref.Kind == ParentPrevious && pos > 0 {
			add(fmt.Sprintf("parents[%d]", pos), errors.New("previous is only allowed as the first parent"))
			continue
		}
		c.Parents = append(c.Parents, ref)
	}

	return c, problems
}

func validateSignature(raw rawSignature) (Signature, error) {
	if !identityPattern.MatchString(raw.Identity) {
		return Signature{}, fmt.Errorf("identity %q must look like \"Name <email>\"", raw.Identity)
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Identity: raw.Identity, Date: date}, nil
}
