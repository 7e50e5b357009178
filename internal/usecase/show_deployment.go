package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// ShowDeployment is the use case for showing one registry record
type ShowDeployment struct {
	registry DeploymentRegistry
	sink     ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(registry DeploymentRegistry, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		registry: registry,
		sink:     sink,
	}
}

// Run loads the record for contractName
func (uc *ShowDeployment) Run(ctx context.Context, contractName string) (*models.DeploymentRecord, error) {
	if contractName == "" {
		return nil, fmt.Errorf("contract name is required")
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	record, err := uc.registry.Get(ctx, contractName)
	if err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: "Deployment loaded",
	})
	return record, nil
}
