package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	runIDKey contextKey = iota
	componentKey
	branchKey
)

// WithRun adds a run ID to the context.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithComponent adds a component name to the context.
// Component names identify the subsystem generating logs (e.g., "history", "planner", "executor").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithBranch adds the branch being rewritten to the context.
func WithBranch(ctx context.Context, branch string) context.Context {
	return context.WithValue(ctx, branchKey, branch)
}

// RunIDFromContext extracts the run ID from the context.
// Returns empty string if not set.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// ComponentFromContext extracts the component name from the context.
func ComponentFromContext(ctx context.Context) string {
	return stringValue(ctx, componentKey)
}

// BranchFromContext extracts the branch name from the context.
func BranchFromContext(ctx context.Context) string {
	return stringValue(ctx, branchKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
