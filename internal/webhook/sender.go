package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lumenbridge/broker/internal/token"
)

// Sender delivers a signed job over HTTP. Lambda-backed webhooks are
// out of scope for this transport (no Lambda client is wired anywhere
// in the domain stack); the Pipeline logs and skips Lambda targets
// before any job is queued, so they never reach a Sender.
type Sender struct {
	httpClient *http.Client
}

// NewSender builds a Sender with a bounded per-attempt timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{httpClient: &http.Client{Timeout: timeout}}
}

// Deliver POSTs job.Body to job.URL with the Pusher webhook headers.
// Non-2xx responses are returned as an error so the worker pool can
// retry.
func (s *Sender) Deliver(ctx context.Context, appKey string, job Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pusher-Key", appKey)
	req.Header.Set("X-Pusher-Signature", job.Signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the X-Pusher-Signature for a webhook body.
func Sign(appSecret string, body []byte) string {
	return token.Sign(appSecret, string(body))
}
