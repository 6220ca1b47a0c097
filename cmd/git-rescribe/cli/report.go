package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/rebase"
)

type reportStyles struct {
	title   lipgloss.Style
	create  lipgloss.Style
	reuse   lipgloss.Style
	hash    lipgloss.Style
	reason  lipgloss.Style
	insert  lipgloss.Style
	delete  lipgloss.Style
	warning lipgloss.Style
}

func newReportStyles() reportStyles {
	return reportStyles{
		title:   lipgloss.NewStyle().Bold(true),
		create:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Width(7),
		reuse:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Width(7),
		hash:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		reason:  lipgloss.NewStyle().Faint(true),
		insert:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		delete:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Strikethrough(true),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// renderPlan writes a one-line-per-entry summary of plan. In verbose mode
// each recreated entry also shows its parents and what changed.
func renderPlan(w io.Writer, branch string, plan *rebase.Plan, verbose bool) {
	s := newReportStyles()
	create, reuse := plan.Counts()

	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Rescribing %s: %d to create, %d to reuse", branch, create, reuse)))
	for _, e := range plan.Entries {
		renderEntry(w, s, e, verbose)
	}
}

func renderEntry(w io.Writer, s reportStyles, e rebase.Entry, verbose bool) {
	action := s.reuse.Render(e.Action.String())
	if e.Action == rebase.ActionCreate {
		action = s.create.Render(e.Action.String())
	}

	id := "(new)  "
	if e.HasOriginal() {
		id = descriptor.ShortHash(e.OriginalHash)
	}

	line := fmt.Sprintf("  %s %s %s", action, s.hash.Render(id), subject(e.Commit.Message))
	if len(e.Reasons) > 0 {
		reasons := make([]string, len(e.Reasons))
		for i, r := range e.Reasons {
			reasons[i] = string(r)
		}
		line += " " + s.reason.Render("["+strings.Join(reasons, ", ")+"]")
	}
	fmt.Fprintln(w, line)

	if !verbose || e.Action != rebase.ActionCreate {
		return
	}

	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = p.String()
	}
	if len(parents) == 0 {
		parents = []string{"none"}
	}
	fmt.Fprintf(w, "          parents: %s\n", strings.Join(parents, ", "))

	if e.Original == nil {
		return
	}
	for _, r := range e.Reasons {
		switch r {
		case rebase.ReasonAuthorIdentity:
			fmt.Fprintf(w, "          author: %s -> %s\n",
				descriptor.FormatIdentity(e.Original.AuthorName, e.Original.AuthorEmail), e.Commit.Author.Identity)
		case rebase.ReasonAuthorDate:
			fmt.Fprintf(w, "          author date: %s -> %s\n",
				descriptor.FormatDate(e.Original.AuthorDate), descriptor.FormatDate(e.Commit.Author.Date))
		case rebase.ReasonCommitterIdentity:
			fmt.Fprintf(w, "          committer: %s -> %s\n",
				descriptor.FormatIdentity(e.Original.CommitterName, e.Original.CommitterEmail), e.Commit.Committer.Identity)
		case rebase.ReasonCommitterDate:
			fmt.Fprintf(w, "          committer date: %s -> %s\n",
				descriptor.FormatDate(e.Original.CommitterDate), descriptor.FormatDate(e.Commit.Committer.Date))
		case rebase.ReasonMessage:
			fmt.Fprintf(w, "          message: %s\n", messageDiff(s, e.Original, e.Commit.Message))
		case rebase.ReasonContent, rebase.ReasonParents:
		}
	}
}

// messageDiff renders a word-level diff of the original and edited message
// on one line, with newlines shown as ⏎.
func messageDiff(s reportStyles, original *objectstore.CommitInfo, edited string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(descriptor.TrimMessage(original.Message), descriptor.TrimMessage(edited), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := strings.ReplaceAll(d.Text, "\n", "⏎")
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString(s.insert.Render("{+" + text + "+}"))
		case diffmatchpatch.DiffDelete:
			b.WriteString(s.delete.Render("[-" + text + "-]"))
		case diffmatchpatch.DiffEqual:
			b.WriteString(text)
		}
	}
	return b.String()
}

func subject(message string) string {
	first, _, _ := strings.Cut(descriptor.TrimMessage(message), "\n")
	if first == "" {
		return "(no message)"
	}
	return first
}
