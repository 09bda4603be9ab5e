// Package slack posts reviewer alerts for reports that need a human look.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/hermes"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster sends alerts to one channel. It implements hermes.Publisher and
// reacts only to flagged and delivery-failed report events.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
	wg      sync.WaitGroup
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 5 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// Publish posts an alert for the report events reviewers act on. Other
// subjects and payloads are ignored. The post runs in the background so a
// slow Slack API never delays the caller; failures are logged.
func (p *Poster) Publish(subject string, data any) error {
	ev, ok := data.(hermes.ReportEvent)
	if !ok {
		return nil
	}
	switch subject {
	case hermes.SubjectFlagged, hermes.SubjectDeliveryFailed:
	default:
		return nil
	}

	text := formatAlert(subject, ev)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
		defer cancel()
		ts, err := p.PostMessage(ctx, text)
		if err != nil {
			p.logger.Error("slack alert failed", "subject", subject, "report_id", ev.ReportID, "error", err)
			return
		}
		p.logger.Info("posted alert to slack", "ts", ts, "subject", subject, "report_id", ev.ReportID)
	}()
	return nil
}

// Close waits for in-flight alerts.
func (p *Poster) Close() {
	p.wg.Wait()
}

// PostMessage posts text to the channel and returns the message timestamp.
func (p *Poster) PostMessage(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatAlert(subject string, ev hermes.ReportEvent) string {
	var sb strings.Builder

	switch subject {
	case hermes.SubjectFlagged:
		fmt.Fprintf(&sb, "*High-risk report submitted* (score %d)\n", ev.Score)
	case hermes.SubjectDeliveryFailed:
		fmt.Fprintf(&sb, "*Report delivery failed* (attempt %d)\n", ev.Attempts)
	}
	fmt.Fprintf(&sb, "*Report:* %s\n", ev.ReportID)

	vehicle := strings.TrimSpace(ev.Make + " " + ev.Model)
	if vehicle != "" {
		fmt.Fprintf(&sb, "*Vehicle:* %s\n", vehicle)
	}
	if ev.Component != "" {
		fmt.Fprintf(&sb, "*Component:* %s\n", ev.Component)
	}
	if ev.State != "" {
		fmt.Fprintf(&sb, "*State:* %s\n", ev.State)
	}
	if len(ev.Signals) > 0 {
		fmt.Fprintf(&sb, "*Signals:* %s\n", strings.Join(ev.Signals, ", "))
	}
	if ev.Error != "" {
		fmt.Fprintf(&sb, "*Error:* %s (sink %s)\n", ev.Error, ev.Backend)
	}
	return sb.String()
}
