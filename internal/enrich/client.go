// Package enrich calls the external text-completion service for
// summaries and reply suggestions. Failures degrade to no enrichment;
// they never fail an item's pipeline pass.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"inboxpilot/pkg/circuitbreaker"
	"inboxpilot/pkg/metrics"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type suggestRequest struct {
	Context string `json:"context"`
}

type suggestResponse struct {
	Replies []string `json:"replies"`
}

// Summarize returns a short summary of text. An open breaker or a
// service failure returns the error for the job layer to classify.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	var resp summarizeResponse
	err := c.call(ctx, "/v1/summarize", summarizeRequest{Text: text}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// SuggestReplies returns candidate replies for an item's content.
func (c *Client) SuggestReplies(ctx context.Context, content string) ([]string, error) {
	var resp suggestResponse
	err := c.call(ctx, "/v1/suggest-replies", suggestRequest{Context: content}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Replies, nil
}

func (c *Client) call(ctx context.Context, endpoint string, reqBody, respBody any) error {
	start := time.Now()

	err := c.breaker.Execute(func() error {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call completion service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("completion service returned error: status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(respBody)
	})

	status := "ok"
	if err != nil {
		status = "error"
		if err == circuitbreaker.ErrCircuitBreakerOpen {
			status = "breaker_open"
			c.logger.Warn("completion service breaker open, skipping call",
				zap.String("endpoint", endpoint))
		}
	}
	metrics.RecordEnrichCallLatency(endpoint, status, time.Since(start))
	return err
}
