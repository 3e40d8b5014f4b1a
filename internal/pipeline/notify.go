package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hakim/censysmatch/internal/models"
)

// NotifyConfig configures where to send completion notifications.
type NotifyConfig struct {
	WebhookURL string // if empty, no notifications

	// Client defaults to an http.Client with a 10 second timeout
	Client *http.Client
}

// completionPayload is the JSON body posted to the webhook endpoint.
type completionPayload struct {
	Job            string          `json:"job"`
	RunID          string          `json:"run_id"`
	Dataset        string          `json:"dataset"`
	Status         string          `json:"status"`
	Stats          models.RunStats `json:"stats"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
}

// SendCompletion posts a JSON summary of a completed run to the webhook URL.
// Returns nil if WebhookURL is empty. Callers treat errors as warnings.
func (n *NotifyConfig) SendCompletion(ctx context.Context, job string, result *RunResult) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	payload := completionPayload{
		Job:            job,
		RunID:          result.RunID,
		Dataset:        result.Dataset,
		Status:         result.Status,
		Stats:          result.Stats,
		ElapsedSeconds: result.Elapsed.Seconds(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}

	return nil
}
