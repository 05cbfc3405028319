// Package retrain implements the gate-train-compare-promote cycle (C9).
// Grounded on original_source/pricing-service/training/retrain_weekly.py's
// WeeklyRetrainingWorkflow: should_retrain's volume gate, per-model-type
// metric comparison, and the all-properties sweep summary shape.
package retrain

import (
	"context"

	"go.uber.org/zap"

	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/modelregistry"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// Action is the outcome of one property/model-type retrain attempt.
type Action string

const (
	ActionDeployed          Action = "deployed"
	ActionTrainedNotDeployed Action = "trained_not_deployed"
	ActionSkipped           Action = "skipped"
	ActionFailed            Action = "failed"
)

// Result is the outcome of one Retrain call.
type Result struct {
	Action     Action
	NewMetrics domain.ModelMetrics
	PrevMetrics domain.ModelMetrics
	Reason     string
}

// OutcomeCounts is satisfied by internal/outcomes.Store, narrowed to what
// the gate needs.
type OutcomeCounts interface {
	MinTotalAndRecent(ctx context.Context, propertyID string) (total int64, recent int64, err error)
}

// DatasetBuilder extracts a training dataset from the outcomes store for
// a property/model-type, outside this package's concern.
type DatasetBuilder interface {
	BuildDataset(ctx context.Context, propertyID string, modelType domain.ModelType) (TrainingDataset, error)
}

// TrainingDataset tells a Trainer which property and model type to train
// and how many outcome rows are available; it carries no rows itself.
type TrainingDataset struct {
	PropertyID string
	ModelType  domain.ModelType
	Rows       int
}

// Trainer fits a new model artifact from a dataset; the learner itself is
// outside this core's scope (spec.md Non-goals: no deep neural network
// training), so this is an external collaborator interface.
type Trainer interface {
	Train(ctx context.Context, dataset TrainingDataset) (domain.ModelArtifact, error)
}

// Orchestrator implements C9.
type Orchestrator struct {
	counts   OutcomeCounts
	datasets DatasetBuilder
	trainer  Trainer
	registry *modelregistry.Registry
	cfg      config.RetrainConfig
	logger   *zap.Logger
}

// New constructs an Orchestrator.
func New(counts OutcomeCounts, datasets DatasetBuilder, trainer Trainer, registry *modelregistry.Registry, cfg config.RetrainConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{counts: counts, datasets: datasets, trainer: trainer, registry: registry, cfg: cfg, logger: logger}
}

// Retrain runs the full gate-train-compare-promote cycle for one
// property/model-type.
func (o *Orchestrator) Retrain(ctx context.Context, propertyID string, modelType domain.ModelType) Result {
	total, recent, err := o.counts.MinTotalAndRecent(ctx, propertyID)
	if err != nil {
		o.logger.Error("retrain gate check failed", zap.String("property_id", propertyID), zap.Error(err))
		return Result{Action: ActionFailed, Reason: "gate check failed"}
	}
	if total < int64(o.cfg.MinTotalOutcomes) || recent < int64(o.cfg.MinNewOutcomes7d) {
		return Result{Action: ActionSkipped, Reason: "insufficient outcome volume"}
	}

	dataset, err := o.datasets.BuildDataset(ctx, propertyID, modelType)
	if err != nil {
		o.logger.Error("dataset build failed", zap.String("property_id", propertyID), zap.Error(err))
		return Result{Action: ActionFailed, Reason: "dataset build failed"}
	}

	newArtifact, err := o.trainer.Train(ctx, dataset)
	if err != nil {
		perr.Log(o.logger, perr.New(perr.RetrainError, "retrain.Retrain", "training failed", err))
		return Result{Action: ActionFailed, Reason: "training failed"}
	}

	prevArtifact, prevErr := o.registry.Load(ctx, propertyID, modelType)
	deploy, reason := compareMetrics(modelType, newArtifact.Metrics, prevArtifact.Metrics, prevErr, o.cfg)

	if err := o.registry.Publish(ctx, newArtifact); err != nil {
		perr.Log(o.logger, perr.New(perr.RetrainError, "retrain.Retrain", "publish failed", err))
		return Result{Action: ActionFailed, Reason: "publish failed"}
	}

	if !deploy {
		return Result{Action: ActionTrainedNotDeployed, NewMetrics: newArtifact.Metrics, PrevMetrics: prevArtifact.Metrics, Reason: reason}
	}

	if err := o.registry.Promote(ctx, propertyID, modelType, newArtifact.Version); err != nil {
		perr.Log(o.logger, perr.New(perr.RetrainError, "retrain.Retrain", "promotion failed", err))
		return Result{Action: ActionFailed, Reason: "promotion failed"}
	}

	return Result{Action: ActionDeployed, NewMetrics: newArtifact.Metrics, PrevMetrics: prevArtifact.Metrics, Reason: reason}
}

// compareMetrics decides deploy/no-deploy per spec.md §4.9's per-model-type
// regression tolerance. No prior artifact (first training run) always
// deploys.
func compareMetrics(modelType domain.ModelType, newMetrics, prevMetrics domain.ModelMetrics, prevErr error, cfg config.RetrainConfig) (deploy bool, reason string) {
	if prevErr != nil {
		return true, "no prior model, deploying first trained artifact"
	}

	tolerance, _ := cfg.ConversionAUCTolerance.Float64()
	rmseTolerance, _ := cfg.RegressionRMSETolerance.Float64()

	switch modelType {
	case domain.ModelConversion:
		if newMetrics.AUC >= prevMetrics.AUC-tolerance {
			return true, "AUC within regression tolerance"
		}
		return false, "AUC regressed beyond tolerance"
	default: // ADR, RevPAR
		if newMetrics.RMSE <= prevMetrics.RMSE*(1+rmseTolerance) {
			return true, "RMSE within regression tolerance"
		}
		return false, "RMSE regressed beyond tolerance"
	}
}

// SweepSummary aggregates an all-properties retrain sweep.
type SweepSummary struct {
	Successful        int
	Skipped           int
	Failed            int
	TrainedNotDeployed int
	Results           map[string]Result
}

// PropertyLister provides the property universe for a sweep, satisfied by
// internal/outcomes.Store.
type PropertyLister interface {
	ListProperties(ctx context.Context) ([]string, error)
}

// RetrainAll iterates every known property for modelType, aggregating a
// summary the way the original's retrain_all_properties does.
func (o *Orchestrator) RetrainAll(ctx context.Context, properties PropertyLister, modelType domain.ModelType) (SweepSummary, error) {
	ids, err := properties.ListProperties(ctx)
	if err != nil {
		return SweepSummary{}, err
	}

	summary := SweepSummary{Results: make(map[string]Result, len(ids))}
	for _, propertyID := range ids {
		result := o.Retrain(ctx, propertyID, modelType)
		summary.Results[propertyID] = result
		switch result.Action {
		case ActionDeployed:
			summary.Successful++
		case ActionSkipped:
			summary.Skipped++
		case ActionFailed:
			summary.Failed++
		case ActionTrainedNotDeployed:
			summary.TrainedNotDeployed++
		}
	}
	return summary, nil
}
