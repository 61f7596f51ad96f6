package notify

import (
	"context"
	"time"
)

// DiscordNotifier posts events as embeds to a Discord webhook.
type DiscordNotifier struct {
	jsonPoster
	username string
}

// DiscordMessage represents a Discord webhook message.
type DiscordMessage struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed.
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
}

// DiscordEmbedField represents a field in a Discord embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents a footer in a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// Discord embed colors.
const (
	ColorGreen  = 0x2ECC71 // Success
	ColorRed    = 0xE74C3C // Error
	ColorYellow = 0xF1C40F // Warning
	ColorBlue   = 0x3498DB // Info
)

// NewDiscordNotifier creates a Discord notifier.
func NewDiscordNotifier(webhookURL, username string) *DiscordNotifier {
	if username == "" {
		username = "colab"
	}
	return &DiscordNotifier{
		jsonPoster: newJSONPoster("Discord", webhookURL, nil),
		username:   username,
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) Send(ctx context.Context, event Event) error {
	return d.post(ctx, DiscordMessage{
		Username: d.username,
		Embeds:   []DiscordEmbed{d.createEmbed(event)},
	})
}

func (d *DiscordNotifier) createEmbed(event Event) DiscordEmbed {
	embed := DiscordEmbed{
		Title:       GetEventTitle(event),
		Description: FormatMessage(event),
		Color:       d.getColor(event),
		Timestamp:   event.Timestamp.Format(time.RFC3339),
		Footer: &DiscordEmbedFooter{
			Text: "colab",
		},
	}

	for _, f := range eventFields(event) {
		embed.Fields = append(embed.Fields, DiscordEmbedField{Name: f.name, Value: f.value, Inline: true})
	}
	return embed
}

func (d *DiscordNotifier) getColor(event Event) int {
	switch event.Type {
	case EventSessionFinished, EventRepoCloned, EventRepoPulled:
		return ColorGreen
	case EventSessionFailed:
		return ColorRed
	case EventRepoCheckedOut, EventSessionStopped:
		return ColorYellow
	default:
		return ColorBlue
	}
}
