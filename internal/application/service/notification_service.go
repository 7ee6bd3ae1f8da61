package service

import (
	"context"
	"fmt"

	"github.com/garyjia/emission-workflow/internal/application/dispatcher"
	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/event"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// NotificationService forwards escalations and SLA breaches to the notifier.
// It runs as a dispatcher subscriber, after the case change has committed.
type NotificationService interface {
	Register(d dispatcher.Dispatcher)
	HandleEscalation(ctx context.Context, evt *event.Event) error
	HandleSLABreach(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

// Register subscribes the service to the events it forwards
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeCaseEscalated, "escalation_notifier", s.HandleEscalation)
	d.SubscribeNamed(event.TypeSLABreached, "sla_notifier", s.HandleSLABreach)
}

// HandleEscalation notifies the team the case was escalated to
func (s *notificationServiceImpl) HandleEscalation(ctx context.Context, evt *event.Event) error {
	target := domainwf.EscalationTarget(evt.GetPayloadString(event.KeyEscalationTarget))
	folio := evt.GetPayloadString(event.KeyFolio)

	n := port.Notification{
		Kind:    port.NotifyEscalation,
		Folio:   folio,
		State:   stateForTarget(target),
		Target:  target,
		Message: fmt.Sprintf("Emisión %s escalada a %s: %s", folio, target, evt.GetPayloadString(event.KeyReason)),
	}
	return s.send(ctx, n)
}

// HandleSLABreach notifies operations about a case over its budget
func (s *notificationServiceImpl) HandleSLABreach(ctx context.Context, evt *event.Event) error {
	folio := evt.GetPayloadString(event.KeyFolio)
	state := domainwf.State(evt.GetPayloadString(event.KeyNewStatus))

	target := state.EscalationTarget()
	if target == domainwf.EscalationNone {
		target = domainwf.EscalationOperations
	}

	n := port.Notification{
		Kind:     port.NotifySLABreach,
		Folio:    folio,
		State:    state,
		Target:   target,
		Severity: evt.GetPayloadString(event.KeySeverity),
		Message: fmt.Sprintf("Emisión %s lleva %.1fh en %s (objetivo %.0fh)",
			folio,
			evt.GetPayloadFloat(event.KeyElapsedHours),
			state,
			evt.GetPayloadFloat(event.KeyBudgetHours),
		),
	}
	return s.send(ctx, n)
}

func (s *notificationServiceImpl) send(ctx context.Context, n port.Notification) error {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Notification failed", "kind", n.Kind, "folio", n.Folio, "error", err)
		return fmt.Errorf("notify %s for %s: %w", n.Kind, n.Folio, err)
	}

	s.logger.Info("Notification sent", "kind", n.Kind, "folio", n.Folio, "target", n.Target)
	return nil
}

func stateForTarget(t domainwf.EscalationTarget) domainwf.State {
	switch t {
	case domainwf.EscalationMedical:
		return domainwf.StateEscalatedMedical
	case domainwf.EscalationOperations:
		return domainwf.StateEscalatedOperations
	default:
		return ""
	}
}
