package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
)

// ErrNoChat is returned when no chat is configured for a notification target
var ErrNoChat = errors.New("no chat configured")

// Notifier implements port.Notifier by posting interactive cards to team chats
type Notifier struct {
	sender MessageSender
	cfg    Config
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		cfg:    cfg,
		logger: logger,
	}
}

// Notify posts the notification to the chat of its target
func (n *Notifier) Notify(ctx context.Context, notification port.Notification) error {
	chatID := n.cfg.ChatFor(string(notification.Target))
	if chatID == "" {
		return fmt.Errorf("%w for target %q", ErrNoChat, notification.Target)
	}

	card, err := json.Marshal(buildCard(notification))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "chat_id", chatID, "interactive", string(card))
	if err != nil {
		return fmt.Errorf("failed to send card message: %w", err)
	}

	n.logger.Info("Notification delivered",
		zap.String("kind", string(notification.Kind)),
		zap.String("folio", notification.Folio),
		zap.String("chat_id", chatID),
		zap.String("message_id", messageID))
	return nil
}

type card struct {
	Config   cardConfig    `json:"config"`
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardElement struct {
	Tag    string      `json:"tag"`
	Text   *cardText   `json:"text,omitempty"`
	Fields []cardField `json:"fields,omitempty"`
}

type cardField struct {
	IsShort bool     `json:"is_short"`
	Text    cardText `json:"text"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

func buildCard(n port.Notification) card {
	title := "Emisión escalada"
	template := "orange"
	if n.Kind == port.NotifySLABreach {
		title = "SLA vencido"
		template = "red"
		if n.Severity == "WARNING" {
			template = "yellow"
		}
	}

	fields := []cardField{
		field("Folio", n.Folio),
		field("Estado", string(n.State)),
	}
	if n.Target != "" {
		fields = append(fields, field("Equipo", string(n.Target)))
	}
	if n.Severity != "" {
		fields = append(fields, field("Severidad", n.Severity))
	}

	return card{
		Config: cardConfig{WideScreenMode: true},
		Header: cardHeader{
			Title:    cardText{Tag: "plain_text", Content: fmt.Sprintf("%s %s", title, n.Folio)},
			Template: template,
		},
		Elements: []cardElement{
			{Tag: "div", Fields: fields},
			{Tag: "div", Text: &cardText{Tag: "lark_md", Content: n.Message}},
		},
	}
}

func field(label, value string) cardField {
	return cardField{
		IsShort: true,
		Text:    cardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", label, value)},
	}
}

// LogNotifier records notifications in the log when Lark is not configured
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (l *LogNotifier) Notify(ctx context.Context, n port.Notification) error {
	l.logger.Info("Notification (lark disabled)",
		zap.String("kind", string(n.Kind)),
		zap.String("folio", n.Folio),
		zap.String("target", string(n.Target)),
		zap.String("message", n.Message))
	return nil
}

// Verify interface compliance
var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)
