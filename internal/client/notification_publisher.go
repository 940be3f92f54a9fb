package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

// NotificationPublisher publishes order approval events to NATS JetStream for
// consumption by the notifications service.
//
// Subject convention: notifications.po.<event_type>
// Event types: approval_required, next_approval_required, order_approved,
//              order_rejected
//
// Publishing is fire-and-forget: every method returns a NotificationResult
// the caller logs, and a nil connection degrades to a no-op (local dev).
// The order_approved event carries a JetStream Nats-Msg-Id of
// "po-approved-<order_id>" so re-entrant completion calls deduplicate at the
// broker instead of fanning out duplicate notifications.
type NotificationPublisher struct {
	js  nats.JetStreamContext
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	ActorID      string         `json:"actor_id,omitempty"`
	Recipients   []string       `json:"recipients"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection produces a disabled publisher.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) (*NotificationPublisher, error) {
	if nc == nil {
		return &NotificationPublisher{log: log}, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// SendApprovalRequest notifies the first level's approver of a new chain.
func (p *NotificationPublisher) SendApprovalRequest(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) service.NotificationResult {
	return p.publish(ctx, "approval_required", &NotificationEvent{
		EventType:    "approval_required",
		Recipients:   recipientOf(approval),
		ResourceType: "order",
		ResourceID:   order.ID,
		IsActionable: true,
		Severity:     "info",
		Category:     "po_approval",
		Payload: map[string]any{
			"order_number":   order.OrderNumber,
			"approval_id":    approval.ID,
			"approval_level": approval.ApprovalLevel,
			"approver_role":  approval.ApproverRole,
			"employee_name":  order.EmployeeName,
			"total":          order.Total.StringFixed(2),
		},
	}, "")
}

// SendNextApprovalNotification notifies the approver at the next level as
// the chain advances.
func (p *NotificationPublisher) SendNextApprovalNotification(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) service.NotificationResult {
	return p.publish(ctx, "next_approval_required", &NotificationEvent{
		EventType:    "next_approval_required",
		Recipients:   recipientOf(approval),
		ResourceType: "order",
		ResourceID:   order.ID,
		IsActionable: true,
		Severity:     "info",
		Category:     "po_approval",
		Payload: map[string]any{
			"order_number":   order.OrderNumber,
			"approval_id":    approval.ID,
			"approval_level": approval.ApprovalLevel,
			"total":          order.Total.StringFixed(2),
		},
	}, "")
}

// SendOrderApproved notifies the employee that the order is fully approved.
// Deduped at the broker by order id, so re-entrant calls are safe.
func (p *NotificationPublisher) SendOrderApproved(ctx context.Context, order *repository.Order, approverNames []string) service.NotificationResult {
	return p.publish(ctx, "order_approved", &NotificationEvent{
		EventType:    "order_approved",
		Recipients:   []string{order.EmployeeID},
		ResourceType: "order",
		ResourceID:   order.ID,
		Severity:     "info",
		Category:     "po_approval",
		Payload: map[string]any{
			"order_number": order.OrderNumber,
			"approvers":    approverNames,
			"total":        order.Total.StringFixed(2),
		},
	}, fmt.Sprintf("po-approved-%s", order.ID))
}

// SendOrderRejected notifies the employee of a rejection.
func (p *NotificationPublisher) SendOrderRejected(ctx context.Context, order *repository.Order, rejectedBy string, reason *string) service.NotificationResult {
	payload := map[string]any{
		"order_number": order.OrderNumber,
		"rejected_by":  rejectedBy,
	}
	if reason != nil {
		payload["reason"] = *reason
	}
	return p.publish(ctx, "order_rejected", &NotificationEvent{
		EventType:    "order_rejected",
		ActorID:      rejectedBy,
		Recipients:   []string{order.EmployeeID},
		ResourceType: "order",
		ResourceID:   order.ID,
		Severity:     "warning",
		Category:     "po_approval",
		Payload:      payload,
	}, "")
}

func (p *NotificationPublisher) publish(ctx context.Context, eventType string, event *NotificationEvent, msgID string) service.NotificationResult {
	if p.js == nil {
		return service.NotificationResult{Delivered: false}
	}
	if len(event.Recipients) == 0 {
		p.log.Debug().Str("event_type", eventType).Msg("notification: no recipients, skipping")
		return service.NotificationResult{Delivered: false}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return service.NotificationResult{Err: fmt.Errorf("marshal event: %w", err)}
	}

	msg := &nats.Msg{
		Subject: fmt.Sprintf("notifications.po.%s", eventType),
		Data:    data,
		Header:  nats.Header{},
	}
	if msgID != "" {
		msg.Header.Set(nats.MsgIdHdr, msgID)
	}

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return service.NotificationResult{Err: err}
	}

	p.log.Debug().
		Str("subject", msg.Subject).
		Str("resource_id", event.ResourceID).
		Int("recipients", len(event.Recipients)).
		Msg("notification: event published")
	return service.NotificationResult{Delivered: true}
}

// recipientOf prefers the explicit approver id, falling back to the level's
// email when the row was created unassigned.
func recipientOf(approval *repository.OrderApproval) []string {
	if approval.ApproverID != nil && *approval.ApproverID != "" {
		return []string{*approval.ApproverID}
	}
	if approval.ApproverEmail != nil && *approval.ApproverEmail != "" {
		return []string{*approval.ApproverEmail}
	}
	return nil
}
