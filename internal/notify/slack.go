package notify

import "context"

// SlackNotifier posts events as attachments to a Slack incoming webhook.
type SlackNotifier struct {
	jsonPoster
	channel  string
	username string
}

// SlackMessage represents a Slack webhook message.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment.
type SlackAttachment struct {
	Color      string       `json:"color,omitempty"`
	Title      string       `json:"title,omitempty"`
	Text       string       `json:"text,omitempty"`
	Fields     []SlackField `json:"fields,omitempty"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Ts         int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// Slack attachment colors.
const (
	SlackColorGood    = "good"    // Green
	SlackColorWarning = "warning" // Yellow
	SlackColorDanger  = "danger"  // Red
)

// NewSlackNotifier creates a Slack notifier. An empty username posts as colab.
func NewSlackNotifier(webhookURL, channel, username string) *SlackNotifier {
	if username == "" {
		username = "colab"
	}
	return &SlackNotifier{
		jsonPoster: newJSONPoster("Slack", webhookURL, nil),
		channel:    channel,
		username:   username,
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

func (s *SlackNotifier) Send(ctx context.Context, event Event) error {
	return s.post(ctx, SlackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   ":books:",
		Attachments: []SlackAttachment{s.createAttachment(event)},
	})
}

func (s *SlackNotifier) createAttachment(event Event) SlackAttachment {
	attachment := SlackAttachment{
		Title:  GetEventTitle(event),
		Text:   FormatMessage(event),
		Color:  s.getColor(event),
		Footer: "colab",
		Ts:     event.Timestamp.Unix(),
	}

	for _, f := range eventFields(event) {
		attachment.Fields = append(attachment.Fields, SlackField{Title: f.name, Value: f.value, Short: true})
	}
	return attachment
}

func (s *SlackNotifier) getColor(event Event) string {
	switch event.Type {
	case EventSessionFinished, EventRepoCloned, EventRepoPulled:
		return SlackColorGood
	case EventSessionFailed:
		return SlackColorDanger
	case EventRepoCheckedOut, EventSessionStopped:
		return SlackColorWarning
	default:
		return ""
	}
}
