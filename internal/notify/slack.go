package notify

import (
	"context"
	"net/http"
)

// SlackNotifier posts to Slack's chat.postMessage endpoint using a
// bot token, per §6's "Slack Web API (chat.postMessage) with channel,
// username, icon, optional attachments/blocks".
type SlackNotifier struct {
	Token    string
	Channel  string
	Username string
	IconURL  string
	client   httpDoer
	baseURL  string
}

// NewSlackNotifier builds a SlackNotifier posting as "team-flow".
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		Token:    token,
		Channel:  channel,
		Username: "team-flow",
		client:   http.DefaultClient,
		baseURL:  "https://slack.com/api/chat.postMessage",
	}
}

type slackAttachment struct {
	Color  string            `json:"color"`
	Title  string             `json:"title"`
	Text   string             `json:"text"`
	Fields []slackField       `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackPayload struct {
	Channel     string            `json:"channel"`
	Username    string            `json:"username"`
	IconURL     string            `json:"icon_url,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackColor(level Level) string {
	switch level {
	case LevelError:
		return "#d0021b"
	case LevelWarning:
		return "#f5a623"
	default:
		return "#2ecc71"
	}
}

// Notify implements Notifier.
func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	attachment := slackAttachment{Color: slackColor(msg.Level), Title: msg.Title, Text: msg.Body}
	for k, v := range msg.Fields {
		attachment.Fields = append(attachment.Fields, slackField{Title: k, Value: v, Short: true})
	}
	payload := slackPayload{
		Channel:     s.Channel,
		Username:    s.Username,
		IconURL:     s.IconURL,
		Text:        msg.Title,
		Attachments: []slackAttachment{attachment},
	}
	return postJSON(ctx, s.client, s.baseURL, payload, map[string]string{
		"Authorization": "Bearer " + s.Token,
	})
}
