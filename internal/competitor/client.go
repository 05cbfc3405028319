// Package competitor fetches competitor price bands for a property/date
// and shields the pricing pipeline from the competitor service being slow
// or down. Adapted from the teacher's common/libraries/go/iaros-core
// HTTPClient: a gobreaker-wrapped http.Client with a bounded retry loop on
// 5xx/network errors.
package competitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// Gateway fetches competitor market bands over HTTP.
type Gateway struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cfg        config.CompetitorGatewayConfig
	apiKey     string
	logger     *zap.Logger
}

// New constructs a Gateway. apiKey may be empty if the competitor endpoint
// requires no auth in this environment.
func New(cfg config.CompetitorGatewayConfig, apiKey string, logger *zap.Logger) *Gateway {
	breakerSettings := gobreaker.Settings{
		Name:        cfg.CircuitBreakerName,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("competitor gateway circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Gateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(breakerSettings),
		cfg:        cfg,
		apiKey:     apiKey,
		logger:     logger,
	}
}

type competitorDataResponse struct {
	CompPriceP10     float64 `json:"comp_price_p10"`
	CompPriceP50     float64 `json:"comp_price_p50"`
	CompPriceP90     float64 `json:"comp_price_p90"`
	CompetitorCount  int     `json:"competitor_count"`
	Source           string  `json:"source"`
}

// FetchBand retrieves the competitor price band for propertyID/stayDate.
// A 404 from upstream means "no data available" and returns an
// unavailable band with no error — only transport failures and non-404
// error statuses surface as UpstreamTransient.
func (g *Gateway) FetchBand(ctx context.Context, propertyID string, stayDate time.Time) (domain.MarketBand, error) {
	url := fmt.Sprintf("%s/api/competitor-data/%s/%s", g.cfg.BaseURL, propertyID, stayDate.Format("2006-01-02"))

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.doWithRetry(ctx, url)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.MarketBand{Available: false}, perr.New(perr.UpstreamTransient, "competitor.FetchBand", "circuit breaker open", err)
		}
		if err == errNotFound {
			return domain.MarketBand{Available: false}, nil
		}
		return domain.MarketBand{Available: false}, perr.New(perr.UpstreamTransient, "competitor.FetchBand", "competitor gateway unavailable", err)
	}

	resp := result.(competitorDataResponse)
	return domain.MarketBand{
		P10:             decimal.NewFromFloat(resp.CompPriceP10),
		P50:             decimal.NewFromFloat(resp.CompPriceP50),
		P90:             decimal.NewFromFloat(resp.CompPriceP90),
		CompetitorCount: resp.CompetitorCount,
		Source:          resp.Source,
		Available:       true,
	}, nil
}

var errNotFound = fmt.Errorf("competitor data not found")

func (g *Gateway) doWithRetry(ctx context.Context, url string) (competitorDataResponse, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			const maxRetryBackoff = 10 * time.Second
			backoff := g.cfg.RetryBaseInterval << (attempt - 1)
			if backoff > maxRetryBackoff {
				backoff = maxRetryBackoff
			}
			select {
			case <-ctx.Done():
				return competitorDataResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return competitorDataResponse{}, err
		}
		if g.apiKey != "" {
			req.Header.Set("X-API-Key", g.apiKey)
		}

		resp, doErr := g.httpClient.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		parsed, err := func() (competitorDataResponse, error) {
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return competitorDataResponse{}, errNotFound
			case resp.StatusCode >= 500:
				return competitorDataResponse{}, fmt.Errorf("competitor gateway status %d", resp.StatusCode)
			case resp.StatusCode >= 400:
				return competitorDataResponse{}, fmt.Errorf("competitor gateway client error: status %d", resp.StatusCode)
			}

			var parsed competitorDataResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return competitorDataResponse{}, fmt.Errorf("decoding competitor response: %w", err)
			}
			return parsed, nil
		}()

		if err == errNotFound {
			return competitorDataResponse{}, errNotFound
		}
		if err != nil {
			if resp.StatusCode >= 500 {
				lastErr = err
				continue
			}
			return competitorDataResponse{}, err
		}
		return parsed, nil
	}
	return competitorDataResponse{}, lastErr
}
