package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openfest/registrar/internal/model"
)

// DiscordAnnouncer posts event-publish announcements to a Discord-style
// webhook.
type DiscordAnnouncer struct {
	WebhookURL string
	Client     *http.Client
}

// NewDiscordAnnouncer constructs an announcer for the given webhook URL.
func NewDiscordAnnouncer(webhookURL string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordMessage struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Announce implements Announcer.
func (a *DiscordAnnouncer) Announce(ctx context.Context, event *model.Event) error {
	if a.WebhookURL == "" {
		return nil
	}

	msg := discordMessage{
		Content: fmt.Sprintf("Registrations are open for **%s** (starts %s)",
			event.Name, event.StartDate.Format("Jan 2, 2006 15:04 MST")),
		Embeds: []discordEmbed{{
			Title:       event.Name,
			Description: event.Description,
		}},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
