package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/logging"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/settings"
)

const planHelp = `

Workflow:
  git rescribe start <base>   write a plan for base..HEAD and open it in your editor
  git rescribe start --root   the same, for every commit reachable from HEAD
  git rescribe --continue     apply the edited plan
  git rescribe --abort        discard the plan without touching the branch

The plan lists one entry per commit, oldest first. Reorder, delete, add
or edit entries; unchanged commits are reused as-is.
`

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE          Set to any value (e.g., ACCESSIBLE=1) to use plain text
                      prompts instead of interactive TUI elements.
  RESCRIBE_LOG_LEVEL  Override the log level (debug, info, warn, error).
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

// runOptions carries flags shared by every flow.
type runOptions struct {
	// AssumeYes skips the confirmation prompt.
	AssumeYes bool
	// Verbose prints parents and per-field changes in the plan report.
	Verbose bool
}

func addRunFlags(fs *pflag.FlagSet, opts *runOptions) {
	fs.BoolVarP(&opts.AssumeYes, "yes", "y", false, "Apply the plan without asking for confirmation")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show parents and field changes in the plan report")
}

func NewRootCmd() *cobra.Command {
	var (
		opts         runOptions
		continueFlag bool
		abortFlag    bool
	)

	cmd := &cobra.Command{
		Use:   "git-rescribe",
		Short: "Rewrite a range of git history from an editable plan",
		Long:  "Rewrite commit metadata, order, parents and content by editing a YAML plan." + planHelp + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetLogLevelGetter(func() string {
				s, err := settings.Load()
				if err != nil {
					return ""
				}
				return s.LogLevel
			})
			runID := logging.NewRunID(time.Now())
			if err := logging.Init(runID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			cmd.SetContext(logging.WithRun(cmd.Context(), runID))
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			logging.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case continueFlag:
				return runContinue(cmd, opts)
			case abortFlag:
				return runAbort(cmd)
			default:
				return cmd.Help()
			}
		},
	}

	addRunFlags(cmd.PersistentFlags(), &opts)
	cmd.Flags().BoolVar(&continueFlag, "continue", false, "Apply the edited plan")
	cmd.Flags().BoolVar(&abortFlag, "abort", false, "Discard the plan in progress")
	cmd.MarkFlagsMutuallyExclusive("continue", "abort")

	cmd.AddCommand(newStartCmd(&opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newStartCmd(opts *runOptions) *cobra.Command {
	var rootFlag bool

	cmd := &cobra.Command{
		Use:   "start [<base>]",
		Short: "Write a plan for base..HEAD and open it in an editor",
		Long: `Start writes one descriptor per commit in base..HEAD (or every commit
reachable from HEAD with --root) to the plan file, opens it in your editor
and applies it when the editor exits successfully.

If the editor fails the plan is kept; fix it and run --continue, or --abort.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case rootFlag && len(args) > 0:
				return fmt.Errorf("cannot combine --root with base %q", args[0])
			case !rootFlag && len(args) == 0:
				return fmt.Errorf("start requires a base commit or --root")
			}
			base := ""
			if len(args) > 0 {
				base = args[0]
			}
			return runStart(cmd, base, rootFlag, *opts)
		},
	}

	cmd.Flags().BoolVar(&rootFlag, "root", false, "Include every commit reachable from HEAD")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "git-rescribe %s (%s)\n", Version, Commit)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
