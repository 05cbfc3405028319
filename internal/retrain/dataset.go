package retrain

import (
	"context"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// SimpleDatasetBuilder counts stored outcomes per property/model-type as a
// stand-in row count; feature extraction and the actual learner fit are
// delegated to the Trainer, which is an external collaborator per
// spec.md's explicit non-goal of training deep models in this core.
type SimpleDatasetBuilder struct {
	counts OutcomeCounts
}

// NewSimpleDatasetBuilder constructs a SimpleDatasetBuilder.
func NewSimpleDatasetBuilder(counts OutcomeCounts) *SimpleDatasetBuilder {
	return &SimpleDatasetBuilder{counts: counts}
}

// BuildDataset implements DatasetBuilder.
func (b *SimpleDatasetBuilder) BuildDataset(ctx context.Context, propertyID string, modelType domain.ModelType) (TrainingDataset, error) {
	total, _, err := b.counts.MinTotalAndRecent(ctx, propertyID)
	if err != nil {
		return TrainingDataset{}, err
	}
	return TrainingDataset{PropertyID: propertyID, ModelType: modelType, Rows: int(total)}, nil
}
