package modelregistry

import (
	"context"
	"encoding/json"
	"math"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// linearModelPayload is the serialized form of a model artifact's
// payload: a bias plus one weight per feature name, in FeatureNames
// order. This stands in for the serialized learner spec.md treats as
// opaque; no ML framework appears anywhere in the example pack, so the
// scoring function itself is a logistic/linear combination over stored
// weights rather than a third-party inference runtime.
type linearModelPayload struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// ConversionScorer implements pricing.Scorer on top of a Registry,
// reordering a FeatureRecord's values to match the loaded artifact's
// stored feature-name list per spec.md §4.3's predict() contract.
type ConversionScorer struct {
	registry *Registry
}

// NewConversionScorer constructs a ConversionScorer.
func NewConversionScorer(registry *Registry) *ConversionScorer {
	return &ConversionScorer{registry: registry}
}

// PredictConversion loads the property's conversion model and scores the
// given features, applying a logistic link so the result is a probability.
func (c *ConversionScorer) PredictConversion(ctx context.Context, propertyID string, record domain.FeatureRecord) (float64, error) {
	artifact, err := c.registry.Load(ctx, propertyID, domain.ModelConversion)
	if err != nil {
		return 0, err
	}

	var payload linearModelPayload
	if err := json.Unmarshal(artifact.Payload, &payload); err != nil {
		return 0, perr.New(perr.ModelUnavailable, "modelregistry.PredictConversion", "corrupt model payload", err)
	}

	aligned := alignFeatures(artifact.FeatureNames, record)
	z := payload.Bias
	for i, w := range payload.Weights {
		if i < len(aligned) {
			z += w * aligned[i]
		}
	}
	return sigmoid(z), nil
}

// alignFeatures reorders record's values to match featureNames, the
// order the artifact was trained with. Unknown names are ignored; missing
// names default to 0, per spec.md §4.3.
func alignFeatures(featureNames []string, record domain.FeatureRecord) []float64 {
	names := record.Names()
	values := record.Values()
	lookup := make(map[string]float64, len(names))
	for i, n := range names {
		lookup[n] = values[i]
	}

	aligned := make([]float64, len(featureNames))
	for i, name := range featureNames {
		aligned[i] = lookup[name] // zero value if absent
	}
	return aligned
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
