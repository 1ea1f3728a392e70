package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
)

type client struct {
	gh           *github.Client
	owner        string
	repo         string
	workflowFile string
}

// Option is a functional option for client configuration
type Option func(*client) error

// WithBaseURL points the client at a different API endpoint, used in tests
func WithBaseURL(baseURL string) Option {
	return func(c *client) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return goerr.Wrap(err, "invalid base URL", goerr.V("url", baseURL))
		}
		c.gh.BaseURL = parsed
		return nil
	}
}

// tokenTransport injects a bearer token from the TokenSource into every
// request. The source decides whether that token is static or freshly minted.
type tokenTransport struct {
	source interfaces.TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token(req.Context())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get forge credential")
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// NewClient creates a GitHub client bound to one repository and one workflow
// file, authenticating through the given TokenSource
func NewClient(owner, repo, workflowFile string, source interfaces.TokenSource, opts ...Option) (interfaces.ForgeClient, error) {
	httpClient := &http.Client{
		Transport: &tokenTransport{source: source, base: http.DefaultTransport},
	}

	c := &client{
		gh:           github.NewClient(httpClient),
		owner:        owner,
		repo:         repo,
		workflowFile: workflowFile,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// GetCommitSHA resolves a ref to an exact commit id. The endpoint accepts a
// branch name or a commit id interchangeably.
func (c *client) GetCommitSHA(ctx context.Context, ref string) (string, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, c.owner, c.repo, ref, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get commit",
			goerr.V("ref", ref), goerr.V("repo", c.repoSlug()))
	}
	return commit.GetSHA(), nil
}

// GetBranchHead resolves a branch name to its head commit id
func (c *client) GetBranchHead(ctx context.Context, branch string) (string, error) {
	gitRef, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get branch head",
			goerr.V("branch", branch), goerr.V("repo", c.repoSlug()))
	}
	return gitRef.GetObject().GetSHA(), nil
}

// CreateCheckRun creates a queued check run anchored to headSHA
func (c *client) CreateCheckRun(ctx context.Context, name, headSHA string) (int64, error) {
	checkRun, _, err := c.gh.Checks.CreateCheckRun(ctx, c.owner, c.repo, github.CreateCheckRunOptions{
		Name:      name,
		HeadSHA:   headSHA,
		Status:    github.Ptr("queued"),
		StartedAt: &github.Timestamp{Time: time.Now().UTC()},
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create check run",
			goerr.V("name", name), goerr.V("head_sha", headSHA))
	}
	return checkRun.GetID(), nil
}

// FailCheckRun marks a check run completed with a failure conclusion
func (c *client) FailCheckRun(ctx context.Context, checkRunID int64, name, summary string) error {
	_, _, err := c.gh.Checks.UpdateCheckRun(ctx, c.owner, c.repo, checkRunID, github.UpdateCheckRunOptions{
		Name:        name,
		Status:      github.Ptr("completed"),
		Conclusion:  github.Ptr("failure"),
		CompletedAt: &github.Timestamp{Time: time.Now().UTC()},
		Output: &github.CheckRunOutput{
			Title:   github.Ptr("Workflow dispatch failed"),
			Summary: github.Ptr(summary),
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update check run",
			goerr.V("check_run_id", checkRunID))
	}
	return nil
}

// DispatchWorkflow triggers the configured workflow file on ref
func (c *client) DispatchWorkflow(ctx context.Context, ref string, inputs map[string]any) error {
	_, err := c.gh.Actions.CreateWorkflowDispatchEventByFileName(ctx, c.owner, c.repo, c.workflowFile,
		github.CreateWorkflowDispatchEventRequest{
			Ref:    ref,
			Inputs: inputs,
		})
	if err != nil {
		return goerr.Wrap(err, "failed to dispatch workflow",
			goerr.V("workflow", c.workflowFile), goerr.V("ref", ref))
	}
	return nil
}

// ValidateWorkflow confirms the configured workflow file exists. A missing
// file would make every dispatched run hang permanently queued, so this is
// checked once at startup.
func (c *client) ValidateWorkflow(ctx context.Context) error {
	_, _, err := c.gh.Actions.GetWorkflowByFileName(ctx, c.owner, c.repo, c.workflowFile)
	if err != nil {
		return goerr.Wrap(err, "workflow file not found in repository",
			goerr.V("workflow", c.workflowFile), goerr.V("repo", c.repoSlug()))
	}
	return nil
}

func (c *client) repoSlug() string {
	return c.owner + "/" + c.repo
}
