package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const webhookTimeout = 10 * time.Second

// WebhookPayload is the POST body delivered to a caller-supplied
// webhook URL once a compile job finishes, grounded on
// original_source/src/models.rs's WebhookPayload (the distilled
// spec.md dropped webhook notification, but it is not named in any
// Non-goal, so it is supplemented here).
type WebhookPayload struct {
	Event         string `json:"event"`
	Timestamp     int64  `json:"timestamp"`
	Success       bool   `json:"success"`
	CompileTimeMs int64  `json:"compileTimeMs"`
	Error         string `json:"error,omitempty"`
}

var webhookClient = &http.Client{Timeout: webhookTimeout}

// fireWebhook delivers a best-effort notification for a completed
// compile job. Failures are logged, never surfaced to the caller who
// already received their HTTP/WS/tool-call response.
func fireWebhook(url string, result *CompileOutcome) {
	event := "compile.success"
	if !result.Success {
		event = "compile.error"
	}

	payload := WebhookPayload{
		Event:         event,
		Timestamp:     timeNowUnix(),
		Success:       result.Success,
		CompileTimeMs: result.CompileTimeMs,
		Error:         result.ErrorMessage,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("request_id", result.RequestID).Msg("failed to marshal webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("request_id", result.RequestID).Msg("failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("request_id", result.RequestID).Str("webhook_url", url).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("request_id", result.RequestID).Msg("webhook endpoint returned non-2xx")
	}
}

func timeNowUnix() int64 { return time.Now().Unix() }
