package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ipo-reminder-backend/internal/notification/scheduler"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// TriggerMessage is published by the IPO ingestion job after it stores new
// listings. Every field is optional.
type TriggerMessage struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// TickRunner runs one scheduler tick
type TickRunner interface {
	RunOnce(ctx context.Context) (scheduler.TickResult, error)
}

// Service listens on a Pub/Sub subscription and runs a notification tick for
// every message, so freshly ingested IPOs do not wait for the next interval
type Service struct {
	pubsubClient *pubsub.Client
	runner       TickRunner
	topicName    string
	subName      string
	logger       *zap.Logger
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, runner TickRunner, logger *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient: client,
		runner:       runner,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
		logger:       logger,
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log := s.logger.With(zap.String("topic", s.topicName), zap.String("subscription", s.subName))
	log.Info("starting pubsub trigger")

	// Ensure subscription exists
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Error("error checking subscription existence", zap.Error(err))
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Error("error checking topic existence", zap.Error(err))
			return
		}
		if !topicExists {
			log.Error("topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			log.Error("failed to create subscription", zap.Error(err))
			return
		}
		log.Info("created subscription")
	}

	// One tick at a time; extra messages during a tick are acked and skipped
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.HandleMessage(ctx, msg.ID, msg.Data)
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("error receiving messages", zap.Error(err))
	}
}

// HandleMessage runs one tick for a trigger message. Malformed payloads still
// trigger a tick; the message body is informational.
func (s *Service) HandleMessage(ctx context.Context, id string, data []byte) {
	log := s.logger.With(zap.String("message_id", id))

	var trigger TriggerMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &trigger); err != nil {
			log.Warn("unreadable trigger payload", zap.Error(err))
		}
	}
	log.Info("trigger received", zap.String("source", trigger.Source), zap.Int("count", trigger.Count))

	result, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, scheduler.ErrTickInProgress):
		log.Info("tick already running, trigger skipped")
	case err != nil:
		log.Error("triggered tick failed", zap.Error(err))
	default:
		log.Info("triggered tick finished", zap.Int("due", result.Due), zap.Int("sent", result.Sent), zap.Int("failed", result.Failed))
	}
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}
