package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

type sentMessage struct {
	receiveIDType, receiveID, msgType, content string
}

type mockSender struct {
	sent []sentMessage
	err  error
}

func (m *mockSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMessage{receiveIDType, receiveID, msgType, content})
	return "om_123", nil
}

func testConfig() Config {
	return Config{
		AppID:     "cli_app",
		AppSecret: "secret",
		Chats: map[string]string{
			"operations": "oc_ops",
			"medical":    "oc_med",
		},
		DefaultChatID: "oc_default",
	}
}

func TestConfig_ChatFor(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, "oc_med", cfg.ChatFor("medical"))
	assert.Equal(t, "oc_ops", cfg.ChatFor("operations"))
	assert.Equal(t, "oc_default", cfg.ChatFor(""))
	assert.True(t, cfg.Enabled())
	assert.False(t, Config{}.Enabled())
}

func TestNotifier_SendsCardToTargetChat(t *testing.T) {
	sender := &mockSender{}
	n := NewNotifier(sender, testConfig(), zap.NewNop())

	err := n.Notify(context.Background(), port.Notification{
		Kind:    port.NotifyEscalation,
		Folio:   "EM-2026-000010",
		State:   domainwf.StateEscalatedMedical,
		Target:  domainwf.EscalationMedical,
		Message: "Revisión médica requerida",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "chat_id", msg.receiveIDType)
	assert.Equal(t, "oc_med", msg.receiveID)
	assert.Equal(t, "interactive", msg.msgType)

	var c card
	require.NoError(t, json.Unmarshal([]byte(msg.content), &c))
	assert.Equal(t, "orange", c.Header.Template)
	assert.Contains(t, c.Header.Title.Content, "EM-2026-000010")
	require.Len(t, c.Elements, 2)
	assert.Equal(t, "Revisión médica requerida", c.Elements[1].Text.Content)
}

func TestNotifier_SLACardColorFollowsSeverity(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"WARNING", "yellow"},
		{"BREACHED", "red"},
		{"HIGH", "red"},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			c := buildCard(port.Notification{Kind: port.NotifySLABreach, Folio: "EM-2026-000001", Severity: tt.severity})
			assert.Equal(t, tt.want, c.Header.Template)
		})
	}
}

func TestNotifier_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultChatID = ""
	delete(cfg.Chats, "operations")

	n := NewNotifier(&mockSender{}, cfg, zap.NewNop())
	err := n.Notify(context.Background(), port.Notification{Kind: port.NotifyEscalation, Target: domainwf.EscalationOperations})
	assert.ErrorIs(t, err, ErrNoChat)

	failing := NewNotifier(&mockSender{err: errors.New("rate limited")}, testConfig(), zap.NewNop())
	err = failing.Notify(context.Background(), port.Notification{Kind: port.NotifyEscalation, Target: domainwf.EscalationMedical})
	assert.ErrorContains(t, err, "rate limited")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(zap.NewNop()).Notify(context.Background(), port.Notification{Folio: "EM-2026-000001"}))
}
