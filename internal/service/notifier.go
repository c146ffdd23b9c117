package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vrcnotify/internal/model"
)

const embedColorDeepSkyBlue = 0x00BFFF

// DeliveryError means the webhook post itself failed. It never rolls back
// dedup state: delivery is at-most-once.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "webhook delivery failed: " + e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Notifier posts Discord embed notifications to a single webhook target.
// An empty webhook URL turns it into a logged no-op.
type Notifier struct {
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

func NewNotifier(webhookURL string, log zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "notifier").Logger(),
	}
}

type embedImage struct {
	URL string `json:"url"`
}

type discordEmbed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Thumbnail   *embedImage `json:"thumbnail,omitempty"`
	Color       int         `json:"color"`
	Footer      *embedFoot  `json:"footer,omitempty"`
}

type embedFoot struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// NotifyNewInstance announces a newly detected group instance. Returns nil
// when the webhook URL is unset (no-op with a warning) and DeliveryError
// when the post fails.
func (n *Notifier) NotifyNewInstance(ctx context.Context, inst model.GroupInstance) error {
	if n.webhookURL == "" {
		n.log.Warn().Msg("DISCORD_WEBHOOK_URL not set, skipping notification")
		return nil
	}

	worldName := inst.World.Name
	if worldName == "" {
		worldName = "unknown"
	}
	members := "?"
	if inst.MemberCount > 0 {
		members = strconv.Itoa(inst.MemberCount)
	}

	deliveryID := uuid.NewString()
	embed := discordEmbed{
		Title: "🎉 New group instance is up!",
		Description: fmt.Sprintf(
			"**World:** %s\n**Members:** %s\n**Location:** `%s`\n[Open in VRChat](%s)",
			worldName, members, inst.Location, inst.LaunchURL()),
		Color:  embedColorDeepSkyBlue,
		Footer: &embedFoot{Text: "delivery " + deliveryID},
	}
	if inst.World.ThumbnailImageURL != "" {
		embed.Thumbnail = &embedImage{URL: inst.World.ThumbnailImageURL}
	}

	if err := n.post(ctx, webhookPayload{Embeds: []discordEmbed{embed}}); err != nil {
		return err
	}

	n.log.Info().
		Str("deliveryId", deliveryID).
		Str("instanceId", inst.InstanceID).
		Str("world", worldName).
		Msg("notification sent")
	return nil
}

// NotifyTest sends a synthetic embed so an operator can verify the webhook
// wiring without waiting for a real instance.
func (n *Notifier) NotifyTest(ctx context.Context) error {
	if n.webhookURL == "" {
		n.log.Warn().Msg("DISCORD_WEBHOOK_URL not set, skipping test notification")
		return nil
	}

	embed := discordEmbed{
		Title:       "🔔 Test notification",
		Description: "vrcnotify webhook wiring is working.",
		Color:       embedColorDeepSkyBlue,
		Footer:      &embedFoot{Text: "delivery " + uuid.NewString()},
	}
	return n.post(ctx, webhookPayload{Embeds: []discordEmbed{embed}})
}

func (n *Notifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &DeliveryError{Err: fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
