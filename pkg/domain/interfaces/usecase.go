package interfaces

import (
	"context"

	"github.com/m-mizutani/herald/pkg/domain/model"
)

// DeploymentUseCase defines the interface for the deployment pipeline
type DeploymentUseCase interface {
	// ProcessDeployment resolves the commit for a ready-deployment event,
	// creates a check run, and dispatches the test workflow. The returned
	// context reports what was resolved and created.
	ProcessDeployment(ctx context.Context, event *model.DeploymentEvent) (*model.DispatchContext, error)
}
