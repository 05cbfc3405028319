package retrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// HTTPTrainer dispatches training to an out-of-process trainer service
// (the actual gradient-boosting fit, grounded on original_source/
// training/train_lightgbm.py, runs there rather than in this core, per
// spec.md's non-goal of training deep models in-process).
type HTTPTrainer struct {
	client  *http.Client
	baseURL string
}

// NewHTTPTrainer constructs an HTTPTrainer pointed at baseURL, expecting a
// POST {baseURL}/train endpoint.
func NewHTTPTrainer(baseURL string, timeout time.Duration) *HTTPTrainer {
	return &HTTPTrainer{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type trainRequest struct {
	PropertyID string          `json:"property_id"`
	ModelType  domain.ModelType `json:"model_type"`
	Rows       int             `json:"rows"`
}

type trainResponse struct {
	Version      string              `json:"version"`
	FeatureNames []string            `json:"feature_names"`
	Metrics      domain.ModelMetrics `json:"metrics"`
	Payload      []byte              `json:"payload"`
}

// Train implements retrain.Trainer.
func (t *HTTPTrainer) Train(ctx context.Context, dataset TrainingDataset) (domain.ModelArtifact, error) {
	body, err := json.Marshal(trainRequest{PropertyID: dataset.PropertyID, ModelType: dataset.ModelType, Rows: dataset.Rows})
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("encoding train request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/train", bytes.NewReader(body))
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("building train request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("trainer service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ModelArtifact{}, fmt.Errorf("trainer service returned status %d", resp.StatusCode)
	}

	var parsed trainResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("decoding trainer response: %w", err)
	}

	return domain.ModelArtifact{
		PropertyID:   dataset.PropertyID,
		ModelType:    dataset.ModelType,
		Version:      parsed.Version,
		FeatureNames: parsed.FeatureNames,
		Metrics:      parsed.Metrics,
		TrainedAt:    time.Now(),
		Payload:      parsed.Payload,
	}, nil
}
