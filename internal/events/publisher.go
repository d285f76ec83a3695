// Package events publishes scoring notifications to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/scoring"
)

const (
	DefaultExchange = "candidate_events"
	exchangeKind    = "topic"
	scoredEvent     = "candidate.scored"
)

// CandidateScoredEvent is the message body of a candidate.<id>.scored event.
type CandidateScoredEvent struct {
	Event         string    `json:"event"`
	CandidateID   int64     `json:"candidateId"`
	FinalScore    float64   `json:"finalScore"`
	RubricVersion string    `json:"rubricVersion"`
	RiskFlags     []string  `json:"riskFlags"`
	ScoredAt      time.Time `json:"scoredAt"`
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements scoring.Notifier.
type Publisher struct {
	conn        *amqp.Connection
	openChannel func() (channel, error)
	exchange    string
	logger      *zap.Logger
}

func newPublisher(conn *amqp.Connection, openChannel func() (channel, error), exchange string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{conn: conn, openChannel: openChannel, exchange: exchange, logger: logger}
}

// Dial connects to the broker and declares the topic exchange.
func Dial(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger.Info("amqp publisher ready", zap.String("exchange", exchange))

	openChannel := func() (channel, error) {
		return conn.Channel()
	}
	return newPublisher(conn, openChannel, exchange, logger), nil
}

func (p *Publisher) CandidateScored(ctx context.Context, score scoring.PersistedScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, msg, err := buildMessage(score)
	if err != nil {
		return err
	}

	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Publish(p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	p.logger.Debug("event published", zap.String("routing_key", key), zap.String("message_id", msg.MessageId))
	return nil
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// RoutingKey is candidate.<id>.scored.
func RoutingKey(candidateID int64) string {
	return fmt.Sprintf("candidate.%d.scored", candidateID)
}

func buildMessage(score scoring.PersistedScore) (string, amqp.Publishing, error) {
	flags := score.RiskFlags
	if flags == nil {
		flags = []string{}
	}

	body, err := json.Marshal(CandidateScoredEvent{
		Event:         scoredEvent,
		CandidateID:   score.CandidateID,
		FinalScore:    score.FinalScore,
		RubricVersion: score.RubricVersion,
		RiskFlags:     flags,
		ScoredAt:      score.UpdatedAt,
	})
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}

	return RoutingKey(score.CandidateID), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    score.UpdatedAt,
		Type:         scoredEvent,
		Body:         body,
	}, nil
}
