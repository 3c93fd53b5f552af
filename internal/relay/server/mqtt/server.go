// Package mqtt implements the broker-side status ingress: cars publish
// status batches to {root}/status/{company}/{car} and the server feeds
// them into the exchange exactly like an HTTP POST would.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleethub-io/fleethub/internal/pkg/mqtt/topics"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/mqtt"
)

// StatusSink accepts status batches; satisfied by the exchange service.
type StatusSink interface {
	SendStatuses(ctx context.Context, company, car string, messages []model.Message) (string, error)
}

const statusQoS = 1

// Server subscribes to the status topic tree and relays batches inward.
type Server struct {
	client    mqtt.Client
	svc       StatusSink
	topicRoot string
	logger    log.Logger
}

func NewServer(client mqtt.Client, svc StatusSink, topicRoot string, logger log.Logger) *Server {
	return &Server{
		client:    client,
		svc:       svc,
		topicRoot: topicRoot,
		logger:    logger,
	}
}

// Start connects, subscribes and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}

	filter := topics.StatusFilter(s.topicRoot)
	if err := s.client.Subscribe(ctx, filter, statusQoS, s.onStatus); err != nil {
		return err
	}
	s.logger.Info("MQTT status ingress running", "filter", filter)

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.client.Disconnect(disconnectCtx)
	return nil
}

// onStatus handles one published batch. Errors are logged, never replied:
// MQTT publishers get no response channel here.
func (s *Server) onStatus(ctx context.Context, topic string, payload []byte) {
	company, car, err := topics.ParseStatus(s.topicRoot, topic)
	if err != nil {
		s.logger.Warn("dropping status message", "topic", topic, "err", err)
		return
	}

	var messages []model.Message
	if err := json.Unmarshal(payload, &messages); err != nil {
		s.logger.Warn("dropping malformed status batch", "topic", topic, "err", err)
		return
	}

	warnings, err := s.svc.SendStatuses(ctx, company, car, messages)
	if err != nil {
		s.logger.Error(err, "failed to ingest status batch", "company", company, "car", car)
		return
	}
	if warnings != "" {
		s.logger.Warn("status batch ingested with warnings", "company", company, "car", car, "warnings", warnings)
	}
}
