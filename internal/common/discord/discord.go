package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Discord rejects embeds with more than 25 fields and field values over 1024 chars.
const (
	maxEmbedFields = 25
	maxFieldValue  = 1024
)

type WebhookMessage struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	Fields      []Field   `json:"fields,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// LoadSummary describes a finished network load for the webhook.
type LoadSummary struct {
	Source             string
	Version            string
	Stations           int
	Connections        int
	DroppedStations    int
	DroppedConnections int
	Unresolved         []string
}

type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

func (c *Client) SendMessage(ctx context.Context, msg WebhookMessage) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) SendLogMessage(level, message string, fields map[string]interface{}) error {
	embed := Embed{
		Title:       fmt.Sprintf("%s Log Alert", level),
		Description: message,
		Color:       getColorForLevel(level),
		Timestamp:   time.Now(),
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if len(embed.Fields) == maxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, Field{
			Name:   key,
			Value:  truncate(fmt.Sprintf("%v", fields[key])),
			Inline: true,
		})
	}

	return c.SendMessage(context.Background(), WebhookMessage{Embeds: []Embed{embed}})
}

// SendLoadReport posts a summary of a network load. Loads with dropped
// records or unresolved lines are coloured as warnings.
func (c *Client) SendLoadReport(ctx context.Context, s LoadSummary) error {
	level := "INFO"
	if s.DroppedStations > 0 || s.DroppedConnections > 0 || len(s.Unresolved) > 0 {
		level = "WARN"
	}

	embed := Embed{
		Title:       "Metro network loaded",
		Description: s.Source,
		Color:       getColorForLevel(level),
		Timestamp:   time.Now(),
		Fields: []Field{
			{Name: "version", Value: s.Version, Inline: true},
			{Name: "stations", Value: fmt.Sprint(s.Stations), Inline: true},
			{Name: "connections", Value: fmt.Sprint(s.Connections), Inline: true},
			{Name: "dropped_stations", Value: fmt.Sprint(s.DroppedStations), Inline: true},
			{Name: "dropped_connections", Value: fmt.Sprint(s.DroppedConnections), Inline: true},
		},
	}
	if len(s.Unresolved) > 0 {
		embed.Fields = append(embed.Fields, Field{
			Name:  "stations_without_line",
			Value: truncate(strings.Join(s.Unresolved, ", ")),
		})
	}

	return c.SendMessage(ctx, WebhookMessage{Embeds: []Embed{embed}})
}

func truncate(s string) string {
	if len(s) <= maxFieldValue {
		return s
	}
	return s[:maxFieldValue-3] + "..."
}

func getColorForLevel(level string) int {
	switch level {
	case "ERROR":
		return 0xFF0000 // Red
	case "FATAL":
		return 0x8B0000 // Dark Red
	case "WARN":
		return 0xFFA500 // Orange
	default:
		return 0x808080 // Gray
	}
}
