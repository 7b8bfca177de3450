// Package publish delivers order and analytics notifications to
// subscribers. Delivery is fire-and-forget: failures are logged and
// dropped, never retried and never returned to the caller.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/storepulse/sales-engine/internal/metrics"
	"github.com/storepulse/sales-engine/internal/model"
)

// Channel and event names.
const (
	ChannelOrders    = "orders"
	ChannelAnalytics = "analytics"

	EventNewOrder         = "new.order"
	EventAnalyticsUpdated = "analytics.updated"
)

// ErrDropped is returned by a transport that discarded a message, for
// example because its queue is full.
var ErrDropped = errors.New("publish: message dropped")

// Transport delivers an encoded payload on a named channel.
type Transport interface {
	Publish(ctx context.Context, channel, event string, payload []byte) error
}

// Envelope is the message shape seen by subscribers.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// OrderEvent is the payload of a new.order notification.
type OrderEvent struct {
	Order   model.Order   `json:"order"`
	Product model.Product `json:"product"`
}

// Publisher serializes domain values and hands them to a transport.
type Publisher struct {
	transport Transport
}

// NewPublisher creates a publisher. A nil transport disables publishing.
func NewPublisher(t Transport) *Publisher {
	return &Publisher{transport: t}
}

// PublishOrder announces a newly recorded order on the orders channel.
func (p *Publisher) PublishOrder(ctx context.Context, order model.Order, product model.Product) {
	p.emit(ctx, ChannelOrders, EventNewOrder, OrderEvent{Order: order, Product: product})
}

// PublishSnapshot announces fresh analytics on the analytics channel.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap model.Snapshot) {
	p.emit(ctx, ChannelAnalytics, EventAnalyticsUpdated, snap)
}

func (p *Publisher) emit(ctx context.Context, channel, event string, v any) {
	if p == nil || p.transport == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		metrics.Notifications.WithLabelValues(channel, "error").Inc()
		slog.Error("notification encode failed", "channel", channel, "event", event, "err", err)
		return
	}

	if err := p.transport.Publish(ctx, channel, event, payload); err != nil {
		result := "error"
		if errors.Is(err, ErrDropped) {
			result = "dropped"
		}
		metrics.Notifications.WithLabelValues(channel, result).Inc()
		slog.Warn("notification not delivered", "channel", channel, "event", event, "err", err)
		return
	}
	metrics.Notifications.WithLabelValues(channel, "sent").Inc()
}

// Fanout publishes to several transports. It reports the first failure
// but always attempts every transport.
type Fanout []Transport

func (f Fanout) Publish(ctx context.Context, channel, event string, payload []byte) error {
	var errs []error
	for _, t := range f {
		if err := t.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
