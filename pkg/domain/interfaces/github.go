package interfaces

import (
	"context"
)

// TokenSource yields a bearer token for the forge API. Two implementations
// exist: a static personal access token, and a GitHub App installation token
// minted per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ForgeClient defines the GitHub operations the deployment pipeline needs
type ForgeClient interface {
	// GetCommitSHA resolves a ref (branch name or commit id) to an exact
	// commit id via the commit lookup endpoint
	GetCommitSHA(ctx context.Context, ref string) (string, error)

	// GetBranchHead resolves a branch name to its head commit id via the
	// git reference endpoint, used as a fallback for GetCommitSHA
	GetBranchHead(ctx context.Context, branch string) (string, error)

	// CreateCheckRun creates a queued check run anchored to headSHA and
	// returns its id
	CreateCheckRun(ctx context.Context, name, headSHA string) (int64, error)

	// FailCheckRun marks an existing check run completed with a failure
	// conclusion and the given summary
	FailCheckRun(ctx context.Context, checkRunID int64, name, summary string) error

	// DispatchWorkflow triggers the configured workflow file on ref with
	// the given inputs
	DispatchWorkflow(ctx context.Context, ref string, inputs map[string]any) error

	// ValidateWorkflow checks that the configured workflow file exists in
	// the repository
	ValidateWorkflow(ctx context.Context) error
}
