package discovery

import (
	"context"
	"fmt"
	"time"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	xhttp "OppScan/pkg/http"
)

// Client talks to the opportunity discovery backend over REST.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
}

// New creates a discovery client.
func New(baseURL, apiKey string, timeout time.Duration) drepo.ScanBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + path,
		Headers: c.headers(),
	}, dest)
}

func (c *Client) post(ctx context.Context, path string, payload, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + path,
		Headers: c.headers(),
		Body:    payload,
	}, dest)
}

type discoverRequest struct {
	ForceRefresh                   bool     `json:"force_refresh"`
	Symbols                        []string `json:"symbols,omitempty"`
	AssetTiers                     []string `json:"asset_tiers,omitempty"`
	StrategyIDs                    []string `json:"strategy_ids,omitempty"`
	IncludeStrategyRecommendations bool     `json:"include_strategy_recommendations"`
}

type discoverResponse struct {
	Success                    bool    `json:"success"`
	ScanID                     string  `json:"scan_id"`
	PollingIntervalSeconds     float64 `json:"polling_interval_seconds"`
	EstimatedCompletionSeconds float64 `json:"estimated_completion_seconds"`
	Message                    string  `json:"message"`
}

// Discover submits a scan request and returns the job handle. Failures
// here are terminal for the call; the caller re-invokes to retry.
func (c *Client) Discover(ctx context.Context, req *models.ScanRequest) (*models.ScanHandle, error) {
	body := &discoverRequest{
		ForceRefresh:                   req.ForceRefresh,
		Symbols:                        req.Symbols,
		AssetTiers:                     req.AssetTiers,
		StrategyIDs:                    req.StrategyIDs,
		IncludeStrategyRecommendations: true,
	}

	var resp discoverResponse
	if err := c.post(ctx, "/opportunities/discover", body, &resp); err != nil {
		return nil, NewInitiationError("discover request failed", err)
	}
	if !resp.Success || resp.ScanID == "" {
		msg := resp.Message
		if msg == "" {
			msg = "backend rejected scan request"
		}
		return nil, NewInitiationError(msg, nil)
	}

	return &models.ScanHandle{
		ScanID:                     resp.ScanID,
		PollingIntervalSeconds:     resp.PollingIntervalSeconds,
		EstimatedCompletionSeconds: resp.EstimatedCompletionSeconds,
	}, nil
}

type statusResponse struct {
	Status         string                  `json:"status"`
	Error          string                  `json:"error"`
	Progress       *models.ScanProgress    `json:"progress"`
	PartialResults []models.RawOpportunity `json:"partial_results"`
}

// Status polls the job once and maps the server status string onto the
// closed state set.
func (c *Client) Status(ctx context.Context, scanID string) (*models.ScanStatus, error) {
	var resp statusResponse
	if err := c.get(ctx, fmt.Sprintf("/opportunities/scan/%s/status", scanID), &resp); err != nil {
		return nil, Classify(err)
	}
	return &models.ScanStatus{
		State:          models.MapServerStatus(resp.Status),
		Raw:            resp.Status,
		Reason:         resp.Error,
		Progress:       resp.Progress,
		PartialResults: resp.PartialResults,
	}, nil
}

// Results fetches the full discovery payload. "Not ready yet" errors can
// be recognized with IsPending.
func (c *Client) Results(ctx context.Context, scanID string) (*models.ScanResults, error) {
	var resp models.ScanResults
	if err := c.get(ctx, fmt.Sprintf("/opportunities/scan/%s/results", scanID), &resp); err != nil {
		if IsPending(err) {
			return nil, err
		}
		return nil, Classify(err)
	}
	return &resp, nil
}

// Pricing fetches the per-unit cost configuration.
func (c *Client) Pricing(ctx context.Context) (*models.PricingConfig, error) {
	var resp models.PricingConfig
	if err := c.get(ctx, "/pricing", &resp); err != nil {
		return nil, Classify(err)
	}
	return &resp, nil
}

type validateResponse struct {
	Success    bool              `json:"success"`
	Validation models.Validation `json:"validation"`
	Message    string            `json:"message"`
}

// Validate runs the per-opportunity validation path, separate from job
// polling.
func (c *Client) Validate(ctx context.Context, symbol string, opp *models.Opportunity) (*models.Validation, error) {
	var resp validateResponse
	if err := c.post(ctx, fmt.Sprintf("/opportunities/%s/validate", symbol), opp, &resp); err != nil {
		return nil, NewValidationError(symbol, err)
	}
	if !resp.Success {
		return nil, NewValidationError(symbol, fmt.Errorf("%s", resp.Message))
	}
	return &resp.Validation, nil
}

type executeResponse struct {
	Success bool                    `json:"success"`
	Receipt models.ExecutionReceipt `json:"receipt"`
	Message string                  `json:"message"`
}

// Execute submits one accepted opportunity for execution.
func (c *Client) Execute(ctx context.Context, opp *models.Opportunity) (*models.ExecutionReceipt, error) {
	var resp executeResponse
	if err := c.post(ctx, "/trades/execute", opp, &resp); err != nil {
		return nil, Classify(err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("execute %s: %s", opp.Symbol, resp.Message)
	}
	return &resp.Receipt, nil
}
