package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/franz/trophy-janitor/internal/util"
)

const (
	// ApifyBaseURL is the Apify platform API base URL
	ApifyBaseURL = "https://api.apify.com/v2"

	// pollInterval is how often a pending actor run is checked
	pollInterval = 3 * time.Second
)

// Resolver resolves watchlist titles to store ids through an Apify actor.
// When no token or actor is configured it degrades to titles-only items.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
	token      string
	actorID    string
}

// NewResolver creates a resolver. Empty token or actorID disables remote
// resolution.
func NewResolver(token, actorID string) *Resolver {
	return &Resolver{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: ApifyBaseURL,
		token:   token,
		actorID: actorID,
	}
}

// Enabled reports whether remote resolution is configured
func (r *Resolver) Enabled() bool {
	return r.token != "" && r.actorID != ""
}

type actorRun struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

type datasetItem struct {
	Title        string `json:"title"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	NPTitleID    string `json:"npTitleId"`
	PlatPricesID string `json:"platpricesId"`
}

// Resolve maps titles to watchlist items. Any remote failure falls back
// to titles-only items rather than failing the command.
func (r *Resolver) Resolve(ctx context.Context, titles []string) []Item {
	if !r.Enabled() {
		return titlesOnly(titles)
	}

	items, err := r.resolveRemote(ctx, titles)
	if err != nil {
		util.WarnLog("Apify resolution failed, falling back to titles only: %v", err)
		return titlesOnly(titles)
	}
	return items
}

func titlesOnly(titles []string) []Item {
	items := make([]Item, 0, len(titles))
	for _, t := range titles {
		items = append(items, Item{Title: t})
	}
	return items
}

func (r *Resolver) resolveRemote(ctx context.Context, titles []string) ([]Item, error) {
	runID, err := r.startRun(ctx, titles)
	if err != nil {
		return nil, err
	}
	util.DebugLog("Apify actor run started: %s", runID)

	datasetID, err := r.waitForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	return r.fetchDataset(ctx, datasetID)
}

func (r *Resolver) startRun(ctx context.Context, titles []string) (string, error) {
	body, err := json.Marshal(map[string]any{"titles": titles})
	if err != nil {
		return "", fmt.Errorf("failed to encode actor input: %w", err)
	}

	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", r.baseURL, r.actorID, r.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var run actorRun
	if err := r.doJSON(req, &run); err != nil {
		return "", fmt.Errorf("failed to start actor run: %w", err)
	}
	if run.Data.ID == "" {
		return "", fmt.Errorf("actor run response carried no run id")
	}
	return run.Data.ID, nil
}

// waitForRun polls the actor run until it reaches a terminal status and
// returns its dataset id
func (r *Resolver) waitForRun(ctx context.Context, runID string) (string, error) {
	for {
		url := fmt.Sprintf("%s/actor-runs/%s?token=%s", r.baseURL, runID, r.token)
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		var run actorRun
		if err := r.doJSON(req, &run); err != nil {
			return "", fmt.Errorf("failed to poll actor run: %w", err)
		}

		switch run.Data.Status {
		case "SUCCEEDED":
			return run.Data.DefaultDatasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("actor run ended with status %s", run.Data.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (r *Resolver) fetchDataset(ctx context.Context, datasetID string) ([]Item, error) {
	url := fmt.Sprintf("%s/datasets/%s/items?token=%s", r.baseURL, datasetID, r.token)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var raw []datasetItem
	if err := r.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		title := it.Title
		if title == "" {
			title = it.Name
		}
		storeID := it.ID
		if storeID == "" {
			storeID = it.NPTitleID
		}
		items = append(items, Item{
			Title:        title,
			StoreID:      storeID,
			PlatPricesID: it.PlatPricesID,
		})
	}
	return items, nil
}

func (r *Resolver) doJSON(req *http.Request, out any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
