package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// TriggerResult is the collector's report for one ingestion run. Errors are
// returned in-band, never signalled by status code alone.
type TriggerResult struct {
	ItemsCreated int      `json:"items_created"`
	ItemsSkipped int      `json:"items_skipped"`
	Errors       []string `json:"errors"`
}

// Client triggers re-ingestion of one source on the external collector
// service. The collector deduplicates by external id, so triggering the
// same source twice with overlapping effect is safe.
type Client interface {
	Trigger(ctx context.Context, sourceID string) (TriggerResult, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

type triggerRequest struct {
	SourceID string `json:"source_id"`
}

func NewClient(baseURL string, logger *log.Logger) Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client-level timeout: the caller bounds each trigger with
		// its own context deadline.
		client: &http.Client{},
		logger: logger,
	}
}

func (c *httpClient) Trigger(ctx context.Context, sourceID string) (TriggerResult, error) {
	if c == nil {
		return TriggerResult{}, errors.New("nil collector client")
	}
	if c.client == nil {
		return TriggerResult{}, errors.New("nil http client")
	}
	endpoint := c.baseURL + "/collect"

	b, err := json.Marshal(triggerRequest{SourceID: strings.TrimSpace(sourceID)})
	if err != nil {
		return TriggerResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return TriggerResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return TriggerResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		bodyStr := strings.TrimSpace(string(rb))
		err := fmt.Errorf("collector trigger failed: status=%d body=%s", resp.StatusCode, bodyStr)
		if c.logger != nil {
			c.logger.Printf("[Collector] Trigger error endpoint=%s source=%s status=%d body=%q", endpoint, sourceID, resp.StatusCode, bodyStr)
		}
		return TriggerResult{}, err
	}

	var out TriggerResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TriggerResult{}, err
	}
	if c.logger != nil {
		c.logger.Printf("[Collector] Trigger ok source=%s created=%d skipped=%d errors=%d duration=%s",
			sourceID, out.ItemsCreated, out.ItemsSkipped, len(out.Errors), time.Since(start).Round(time.Millisecond))
	}
	return out, nil
}

var _ Client = (*httpClient)(nil)
