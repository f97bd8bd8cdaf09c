package faults

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// RedisBridge publishes faults on a Redis channel so a consumer attached to any instance sees them.
// Delivery is fire-and-forget: publish failures are logged and never returned to the write path.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   *LocalBridge
	log     logger.Logger
}

// NewRedisBridge creates a bridge on the permission-error channel. Run must be started to receive.
func NewRedisBridge(client *redis.Client, local *LocalBridge, log logger.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: ports.PermissionFaultEvent,
		local:   local,
		log:     log,
	}
}

var _ ports.FaultBridge = (*RedisBridge)(nil)

func (b *RedisBridge) ReportPermissionFault(ctx context.Context, fault domain.PermissionFault) {
	logger.LogPermissionFault(ctx, b.log, fault)

	payload, err := json.Marshal(fault)
	if err != nil {
		b.log.Error(ctx, "Failed to encode permission fault", err, nil)
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Error(ctx, "Failed to publish permission fault", err, map[string]interface{}{
			"channel": b.channel,
		})
	}
}

// Subscribe attaches a consumer on this instance
func (b *RedisBridge) Subscribe(handler ports.FaultHandler) func() {
	return b.local.Subscribe(handler)
}

// Run forwards faults published by any instance to this instance's consumers until ctx ends
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.log.Info(ctx, "Fault bridge subscribed", map[string]interface{}{"channel": b.channel})

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			fault, err := decodeFault(msg.Payload)
			if err != nil {
				b.log.Warn(ctx, "Ignoring malformed permission fault", map[string]interface{}{"error": err.Error()})
				continue
			}
			b.local.deliver(ctx, fault)
		}
	}
}

func decodeFault(payload string) (domain.PermissionFault, error) {
	var fault domain.PermissionFault
	if err := json.Unmarshal([]byte(payload), &fault); err != nil {
		return domain.PermissionFault{}, fmt.Errorf("failed to decode fault: %w", err)
	}
	if fault.Path == "" {
		return domain.PermissionFault{}, fmt.Errorf("fault has no path")
	}
	return fault, nil
}
