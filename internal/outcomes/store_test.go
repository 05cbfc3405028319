package outcomes

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

func TestValidateOutcomeRejectsMissingPropertyID(t *testing.T) {
	err := validateOutcome(domain.Outcome{Timestamp: time.Now(), QuotedPrice: decimal.NewFromFloat(10)})
	assert.Error(t, err)
}

func TestValidateOutcomeRejectsZeroTimestamp(t *testing.T) {
	err := validateOutcome(domain.Outcome{PropertyID: "prop-1", QuotedPrice: decimal.NewFromFloat(10)})
	assert.Error(t, err)
}

func TestValidateOutcomeRejectsNonPositivePrice(t *testing.T) {
	err := validateOutcome(domain.Outcome{PropertyID: "prop-1", Timestamp: time.Now(), QuotedPrice: decimal.Zero})
	assert.Error(t, err)
}

func TestValidateOutcomeAcceptsWellFormedRecord(t *testing.T) {
	err := validateOutcome(domain.Outcome{PropertyID: "prop-1", Timestamp: time.Now(), QuotedPrice: decimal.NewFromFloat(10)})
	assert.NoError(t, err)
}

func TestRowRoundTripPreservesOptionalFields(t *testing.T) {
	final := decimal.NewFromFloat(95.5)
	comp := decimal.NewFromFloat(90)
	original := domain.Outcome{
		PropertyID:  "prop-1",
		Timestamp:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		QuotedPrice: decimal.NewFromFloat(100),
		Accepted:    true,
		FinalPrice:  &final,
		CompP50:     &comp,
		ActionID:    "action-1",
		ContextJSON: `{"season":"Summer"}`,
	}

	row := toRow(original)
	roundTripped := fromRow(row)

	assert.Equal(t, original.PropertyID, roundTripped.PropertyID)
	assert.True(t, original.Timestamp.Equal(roundTripped.Timestamp))
	assert.True(t, original.QuotedPrice.Equal(roundTripped.QuotedPrice))
	assert.Equal(t, original.Accepted, roundTripped.Accepted)
	require.NotNil(t, roundTripped.FinalPrice)
	assert.True(t, final.Equal(*roundTripped.FinalPrice))
	require.NotNil(t, roundTripped.CompP50)
	assert.True(t, comp.Equal(*roundTripped.CompP50))
	assert.Equal(t, original.ActionID, roundTripped.ActionID)
}

func TestRowRoundTripLeavesOptionalFieldsNilWhenAbsent(t *testing.T) {
	original := domain.Outcome{
		PropertyID:  "prop-1",
		Timestamp:   time.Now(),
		QuotedPrice: decimal.NewFromFloat(50),
	}

	roundTripped := fromRow(toRow(original))

	assert.Nil(t, roundTripped.FinalPrice)
	assert.Nil(t, roundTripped.CompP50)
}
