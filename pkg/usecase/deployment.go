package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
	"github.com/m-mizutani/herald/pkg/utils/safe"
)

// failCheckRunTimeout bounds the best-effort check run annotation after a
// dispatch failure. A detached context is used so client disconnect cannot
// cancel the annotation mid-flight.
const failCheckRunTimeout = 10 * time.Second

type deploymentUseCase struct {
	forge       interfaces.ForgeClient
	checkPrefix string
}

// NewDeployment creates a new instance of DeploymentUseCase. checkPrefix is
// the fixed prefix of check run names, combined with the project name.
func NewDeployment(forge interfaces.ForgeClient, checkPrefix string) interfaces.DeploymentUseCase {
	return &deploymentUseCase{
		forge:       forge,
		checkPrefix: checkPrefix,
	}
}

// ProcessDeployment runs the pipeline for one ready-deployment event:
// resolve the commit, create a queued check run on it, then dispatch the
// test workflow with the preview URL and the check run id.
func (uc *deploymentUseCase) ProcessDeployment(ctx context.Context, event *model.DeploymentEvent) (*model.DispatchContext, error) {
	logger := ctxlog.From(ctx)

	headCommit, err := uc.resolveCommit(ctx, event)
	if err != nil {
		return nil, err
	}

	dispatch := &model.DispatchContext{
		HeadCommit: headCommit,
		PreviewURL: model.NormalizePreviewURL(event.PreviewURL),
		Project:    event.Project,
		Ref:        event.Ref,
	}

	checkName := fmt.Sprintf("%s (%s)", uc.checkPrefix, event.Project)
	checkRunID, err := uc.forge.CreateCheckRun(ctx, checkName, headCommit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create check run",
			goerr.T(types.ErrTagCheckRunCreate),
			goerr.V("head_commit", headCommit),
			goerr.V("project", event.Project))
	}
	dispatch.CheckRunID = checkRunID

	logger.Info("Created check run",
		"check_run_id", checkRunID,
		"name", checkName,
		"head_commit", headCommit,
	)

	inputs := map[string]any{
		"url":          dispatch.PreviewURL,
		"project":      dispatch.Project,
		"check_run_id": strconv.FormatInt(checkRunID, 10),
	}

	if err := uc.forge.DispatchWorkflow(ctx, dispatch.Ref, inputs); err != nil {
		uc.failCheckRun(ctx, checkRunID, checkName, err)
		return nil, goerr.Wrap(err, "failed to dispatch workflow",
			goerr.T(types.ErrTagDispatch),
			goerr.V("ref", dispatch.Ref),
			goerr.V("check_run_id", checkRunID))
	}

	logger.Info("Dispatched workflow",
		"ref", dispatch.Ref,
		"url", dispatch.PreviewURL,
		"project", dispatch.Project,
		"check_run_id", checkRunID,
	)

	return dispatch, nil
}

// resolveCommit produces the commit the check run is anchored to. Metadata
// from the event short-circuits any network lookup; otherwise the commit
// endpoint is tried first, then the branch head endpoint.
func (uc *deploymentUseCase) resolveCommit(ctx context.Context, event *model.DeploymentEvent) (string, error) {
	logger := ctxlog.From(ctx)

	if event.CommitSHA != "" {
		logger.Debug("Using commit id from event metadata", "commit_sha", event.CommitSHA)
		return event.CommitSHA, nil
	}

	sha, commitErr := uc.forge.GetCommitSHA(ctx, event.Ref)
	if commitErr == nil {
		return sha, nil
	}

	sha, branchErr := uc.forge.GetBranchHead(ctx, event.Ref)
	if branchErr == nil {
		return sha, nil
	}

	return "", goerr.New(fmt.Sprintf("could not resolve ref %q to a commit", event.Ref),
		goerr.T(types.ErrTagUnresolvableRef),
		goerr.V("ref", event.Ref),
		goerr.V("commit_lookup_error", commitErr.Error()),
		goerr.V("branch_lookup_error", branchErr.Error()))
}

// failCheckRun annotates an already-created check run after a dispatch
// failure so the PR does not show a permanently queued check. Best effort:
// its own failure is logged and discarded.
func (uc *deploymentUseCase) failCheckRun(ctx context.Context, checkRunID int64, checkName string, dispatchErr error) {
	detached := ctxlog.With(context.Background(), ctxlog.From(ctx))
	detached, cancel := context.WithTimeout(detached, failCheckRunTimeout)
	defer cancel()

	summary := fmt.Sprintf("Workflow dispatch failed: %s", dispatchErr.Error())
	safe.Run(detached, "fail_check_run", func(ctx context.Context) error {
		return uc.forge.FailCheckRun(ctx, checkRunID, checkName, summary)
	})
}
