package notify

import (
	"context"
	"net/http"
)

// DiscordNotifier posts an embed to a Discord incoming webhook, per
// §6's "Discord via webhook POST with embeds".
type DiscordNotifier struct {
	WebhookURL string
	client     httpDoer
}

// NewDiscordNotifier builds a DiscordNotifier targeting webhookURL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{WebhookURL: webhookURL, client: http.DefaultClient}
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func discordColor(level Level) int {
	switch level {
	case LevelError:
		return 0xd0021b
	case LevelWarning:
		return 0xf5a623
	default:
		return 0x2ecc71
	}
}

// Notify implements Notifier.
func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	embed := discordEmbed{Title: msg.Title, Description: msg.Body, Color: discordColor(msg.Level)}
	for k, v := range msg.Fields {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: k, Value: v, Inline: true})
	}
	payload := discordPayload{Username: "team-flow", Embeds: []discordEmbed{embed}}
	return postJSON(ctx, d.client, d.WebhookURL, payload, nil)
}
