package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"case processed", TypeCaseProcessed, true},
		{"status changed", TypeStatusChanged, true},
		{"escalated", TypeCaseEscalated, true},
		{"sla breached", TypeSLABreached, true},
		{"document removed", TypeDocumentRemoved, true},
		{"unknown", Type("voucher.generated"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	if got := TypeStatusChanged.String(); got != "case.status_changed" {
		t.Errorf("Type.String() = %v, want %v", got, "case.status_changed")
	}
}

func TestNewEvent(t *testing.T) {
	caseID := uuid.New()
	before := time.Now()
	evt := NewEvent(TypeCaseEscalated, caseID, map[string]interface{}{KeyEscalationTarget: "medical"})
	after := time.Now()

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("CorrelationID = %v, want the event ID for a new chain", evt.CorrelationID)
	}
	if evt.CaseID != caseID {
		t.Errorf("CaseID = %v, want %v", evt.CaseID, caseID)
	}
	if evt.Timestamp.Before(before) || evt.Timestamp.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", evt.Timestamp, before, after)
	}
	if got := evt.GetPayloadString(KeyEscalationTarget); got != "medical" {
		t.Errorf("payload escalation_target = %q, want medical", got)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeCaseProcessed, uuid.New(), nil)
		if seen[evt.ID] {
			t.Fatalf("duplicate event ID %s", evt.ID)
		}
		seen[evt.ID] = true
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeSLABreached, uuid.New(), nil, "sweep-1")
	if evt.CorrelationID != "sweep-1" {
		t.Errorf("CorrelationID = %v, want sweep-1", evt.CorrelationID)
	}
	if evt.ID == "sweep-1" {
		t.Error("event ID must not reuse the correlation ID")
	}
}

func TestWithPayload_IsImmutable(t *testing.T) {
	original := NewEvent(TypeCaseProcessed, uuid.New(), map[string]interface{}{KeyOpened: 1})
	updated := original.WithPayload(KeyClosed, 2)

	if _, ok := original.Payload[KeyClosed]; ok {
		t.Error("WithPayload mutated the original payload")
	}
	if updated.GetPayloadInt(KeyClosed) != 2 || updated.GetPayloadInt(KeyOpened) != 1 {
		t.Errorf("updated payload = %v", updated.Payload)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload must keep the event ID")
	}
}

func TestPayloadGetters(t *testing.T) {
	evt := NewEvent(TypeSLABreached, uuid.New(), map[string]interface{}{
		"s":   "text",
		"i":   42,
		"f":   float64(3.5),
		"b":   true,
		"i64": int64(7),
	})

	if evt.GetPayloadString("s") != "text" || evt.GetPayloadString("i") != "" {
		t.Error("GetPayloadString mismatch")
	}
	if evt.GetPayloadInt("i") != 42 || evt.GetPayloadInt("i64") != 7 || evt.GetPayloadInt("f") != 3 {
		t.Error("GetPayloadInt mismatch")
	}
	if evt.GetPayloadFloat("f") != 3.5 || evt.GetPayloadFloat("i") != 42 {
		t.Error("GetPayloadFloat mismatch")
	}
	if !evt.GetPayloadBool("b") || evt.GetPayloadBool("missing") {
		t.Error("GetPayloadBool mismatch")
	}
}
