// Package slack sends run notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Notification summarizes a finished audit run for the channel.
type Notification struct {
	CompanyName string
	Verdict     string
	Score       float64
	ScoreMax    int
	DataQuality float64
	DealURL     string
	Status      string
}

// Client posts notifications to a webhook.
type Client interface {
	Notify(ctx context.Context, n Notification) error
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	webhookURL string
	http       *http.Client
}

// NewClient creates a Slack webhook client.
func NewClient(webhookURL string, opts ...Option) Client {
	c := &httpClient{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *httpClient) Notify(ctx context.Context, n Notification) error {
	headline := fmt.Sprintf("%s *%s: %s*", verdictEmoji(n.Verdict), statusText(n.Status), n.CompanyName)

	lines := []string{
		headline,
		fmt.Sprintf("• Verdict: *%s* (%.0f/%d points)", strings.ToUpper(n.Verdict), n.Score, n.ScoreMax),
		fmt.Sprintf("• Data quality: *%.0f%%*", n.DataQuality),
	}
	if n.DealURL != "" {
		lines = append(lines, fmt.Sprintf("• <%s|Open the deal>", n.DealURL))
	}

	msg := message{
		Text: headline,
		Blocks: []block{
			{
				Type: "section",
				Text: &blockText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "slack: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "slack: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "slack: execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return eris.Errorf("slack: webhook status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// verdictEmoji maps the audit verdict to its channel marker.
func verdictEmoji(verdict string) string {
	switch strings.ToUpper(verdict) {
	case "GO":
		return "🟢"
	case "EXPLORE":
		return "🟡"
	default:
		return "🔴"
	}
}

func statusText(status string) string {
	if status == "" || status == "completed" {
		return "Audit complete"
	}
	return fmt.Sprintf("Audit complete (%s)", status)
}
