package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"inboxpilot/internal/model"
)

// RawItem is what a source adapter hands the pipeline before scoring.
type RawItem struct {
	ExternalID string     `json:"external_id"`
	Sender     string     `json:"sender"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	OccursAt   *time.Time `json:"occurs_at,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

// SourceAdapter pulls recent items from one provider. Adapters are
// external collaborators; the pipeline only depends on this contract.
type SourceAdapter interface {
	Source() model.Source
	FetchRecent(ctx context.Context, userID int, window time.Duration) ([]RawItem, error)
}

// HTTPAdapter fetches items from a provider bridge speaking a plain
// JSON contract: GET {base}/items?user_id=&window_minutes=.
type HTTPAdapter struct {
	source  model.Source
	baseURL string
	http    *http.Client
}

func NewHTTPAdapter(source model.Source, baseURL string) *HTTPAdapter {
	return &HTTPAdapter{
		source:  source,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *HTTPAdapter) Source() model.Source {
	return a.source
}

func (a *HTTPAdapter) FetchRecent(ctx context.Context, userID int, window time.Duration) ([]RawItem, error) {
	url := fmt.Sprintf("%s/items?user_id=%d&window_minutes=%d",
		a.baseURL, userID, int(window.Minutes()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s source: %w", a.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s source returned status %d", a.source, resp.StatusCode)
	}

	var items []RawItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode %s source response: %w", a.source, err)
	}
	return items, nil
}
