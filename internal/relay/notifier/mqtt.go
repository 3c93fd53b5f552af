// Package notifier pushes persisted commands out to vehicles over the
// broker, as a best-effort complement to long-polling.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleethub-io/fleethub/internal/pkg/mqtt/topics"
	"github.com/fleethub-io/fleethub/internal/relay/core"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/mqtt"
)

const commandQoS = 1

// MqttNotifier publishes command batches to {root}/command/{company}/{car}.
type MqttNotifier struct {
	client    mqtt.Client
	topicRoot string
	logger    log.Logger
}

var _ core.CommandNotifier = (*MqttNotifier)(nil)

func NewMqttNotifier(client mqtt.Client, topicRoot string, logger log.Logger) *MqttNotifier {
	return &MqttNotifier{
		client:    client,
		topicRoot: topicRoot,
		logger:    logger,
	}
}

// NotifyCommands publishes the batch as one JSON payload. The caller treats
// failures as non-fatal; the commands stay queryable either way.
func (n *MqttNotifier) NotifyCommands(ctx context.Context, car model.Car, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode command batch: %w", err)
	}

	topic := topics.CommandTopic(n.topicRoot, car.Company, car.Name)
	if err := n.client.Publish(ctx, topic, commandQoS, false, payload); err != nil {
		return fmt.Errorf("failed to publish commands to %s: %w", topic, err)
	}

	n.logger.Debug("published command batch", "topic", topic, "count", len(messages))
	return nil
}
