package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/drift"
	"github.com/jengu-tech/pricing-service/internal/obslog"
	"github.com/jengu-tech/pricing-service/internal/outcomes"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

type fakePricer struct {
	quote     domain.PriceQuote
	err       error
	forceFail bool
	lastReq   domain.PricingRequest
}

func (f *fakePricer) Score(_ context.Context, req domain.PricingRequest) (domain.PriceQuote, error) {
	f.lastReq = req
	if f.forceFail {
		return domain.PriceQuote{}, f.err
	}
	return f.quote, nil
}

type fakeOutcomeSubmitter struct {
	appendResult outcomes.AppendResult
	appendErr    error
	stats        outcomes.Stats
	statsErr     error
	lastBatch    []domain.Outcome
}

func (f *fakeOutcomeSubmitter) Append(_ context.Context, _ string, batch []domain.Outcome) (outcomes.AppendResult, error) {
	f.lastBatch = batch
	if f.appendErr != nil {
		return outcomes.AppendResult{}, f.appendErr
	}
	return f.appendResult, nil
}

func (f *fakeOutcomeSubmitter) Stats(context.Context, string) (outcomes.Stats, error) {
	if f.statsErr != nil {
		return outcomes.Stats{}, f.statsErr
	}
	return f.stats, nil
}

type fakeModelInfoProvider struct {
	version string
	err     error
}

func (f fakeModelInfoProvider) LatestVersion(context.Context, string, domain.ModelType) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.version, nil
}

type fakeDriftChecker struct {
	result drift.Result
	err    error
}

func (f fakeDriftChecker) CheckDrift(context.Context, string) (drift.Result, error) {
	if f.err != nil {
		return drift.Result{}, f.err
	}
	return f.result, nil
}

func newTestServer(pricer Pricer, outs OutcomeSubmitter, models ModelInfoProvider, driftChecker DriftChecker) *Server {
	logger := obslog.New(obslog.Config{})
	return New(pricer, outs, models, driftChecker, logger, nil, "test-version")
}

func TestHandleGetPriceQuoteHappyPath(t *testing.T) {
	pricer := &fakePricer{quote: domain.PriceQuote{PropertyID: "prop-1", Price: decimal.NewFromFloat(123.45)}}
	server := newTestServer(pricer, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	body := `{
		"user_id": "user-1",
		"stay_date": "2026-06-10T00:00:00Z",
		"quote_time": "2026-06-01T00:00:00Z",
		"base_price": 100,
		"product": {"length_of_stay_days": 2},
		"inventory": {"capacity": 10, "remaining": 5},
		"context": {"season": "Summer", "day_of_week": 3}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/properties/prop-1/quote", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "prop-1", pricer.lastReq.PropertyID, "property_id should come from the URL path")

	var got domain.PriceQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Price.Equal(decimal.NewFromFloat(123.45)))
}

func TestHandleGetPriceQuoteMalformedJSONReturnsBadRequest(t *testing.T) {
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/properties/prop-1/quote", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPriceQuoteInvalidDateReturnsBadRequest(t *testing.T) {
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	body := `{"stay_date": "not-a-date", "quote_time": "2026-06-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/properties/prop-1/quote", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPriceQuotePropagatesPricerErrorStatus(t *testing.T) {
	pricer := &fakePricer{forceFail: true, err: perr.New(perr.Input, "op", "bad request", nil)}
	server := newTestServer(pricer, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	body := `{
		"stay_date": "2026-06-10T00:00:00Z",
		"quote_time": "2026-06-01T00:00:00Z",
		"product": {"length_of_stay_days": 1},
		"inventory": {"capacity": 1, "remaining": 1},
		"context": {"season": "Summer"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/properties/prop-1/quote", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitOutcomesSkipsUnparsableTimestamps(t *testing.T) {
	submitter := &fakeOutcomeSubmitter{appendResult: outcomes.AppendResult{Stored: 1}}
	server := newTestServer(&fakePricer{}, submitter, fakeModelInfoProvider{}, nil)

	body := `{"outcomes": [
		{"timestamp": "2026-06-01T00:00:00Z", "quoted_price": 100, "booked": true},
		{"timestamp": "garbage", "quoted_price": 90, "booked": false}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/properties/prop-1/outcomes", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, submitter.lastBatch, 1, "the unparsable-timestamp record should be dropped, not stored")
	assert.Equal(t, "prop-1", submitter.lastBatch[0].PropertyID)
}

func TestHandleOutcomeStatsReturnsStoreStats(t *testing.T) {
	submitter := &fakeOutcomeSubmitter{stats: outcomes.Stats{Total: 42, AcceptanceRate: 0.5}}
	server := newTestServer(&fakePricer{}, submitter, fakeModelInfoProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/properties/prop-1/outcomes/stats", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got outcomes.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 42, got.Total)
}

func TestHandleDriftCheckDisabledWhenCheckerIsNil(t *testing.T) {
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/properties/prop-1/drift", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleDriftCheckReturnsResult(t *testing.T) {
	checker := fakeDriftChecker{result: drift.Result{Summary: drift.Summary{Total: 1, Drifted: 1, TriggerRetrain: true}}}
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, checker)

	req := httptest.NewRequest(http.MethodGet, "/v1/properties/prop-1/drift", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got drift.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Summary.TriggerRetrain)
}

func TestHandleGetModelInfoUnavailableWhenNoVersionPromoted(t *testing.T) {
	models := fakeModelInfoProvider{err: assertError{}}
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, models, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/properties/prop-1/models/conversion", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetModelInfoReturnsVersion(t *testing.T) {
	models := fakeModelInfoProvider{version: "v3"}
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, models, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/properties/prop-1/models/conversion", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "v3", got["version"])
}

func TestHandleHealthCheck(t *testing.T) {
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersSetOnEveryResponse(t *testing.T) {
	server := newTestServer(&fakePricer{}, &fakeOutcomeSubmitter{}, fakeModelInfoProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type assertError struct{}

func (assertError) Error() string { return "not found" }
