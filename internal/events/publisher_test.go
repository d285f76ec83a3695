package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ats-scorer/internal/scoring"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    int
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed++
	return nil
}

func newTestPublisher(ch *fakeChannel, logger *zap.Logger) *Publisher {
	return newPublisher(nil, func() (channel, error) { return ch, nil }, "", logger)
}

func sampleScore() scoring.PersistedScore {
	return scoring.PersistedScore{
		CandidateScore: scoring.CandidateScore{
			CandidateID:   42,
			FinalScore:    4.1,
			RubricVersion: scoring.RubricVersion,
		},
		UpdatedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCandidateScoredPublishes(t *testing.T) {
	ch := &fakeChannel{}
	core, logs := observer.New(zap.DebugLevel)
	p := newTestPublisher(ch, zap.New(core))

	if err := p.CandidateScored(context.Background(), sampleScore()); err != nil {
		t.Fatalf("CandidateScored returned error: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.published))
	}
	got := ch.published[0]
	if got.exchange != DefaultExchange {
		t.Fatalf("unexpected exchange %q", got.exchange)
	}
	if got.key != "candidate.42.scored" {
		t.Fatalf("unexpected routing key %q", got.key)
	}
	if got.msg.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", got.msg.ContentType)
	}
	if _, err := uuid.Parse(got.msg.MessageId); err != nil {
		t.Fatalf("message id is not a uuid: %v", err)
	}
	if ch.closed != 1 {
		t.Fatalf("expected channel to be closed once, got %d", ch.closed)
	}

	var event CandidateScoredEvent
	if err := json.Unmarshal(got.msg.Body, &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.Event != "candidate.scored" || event.CandidateID != 42 || event.FinalScore != 4.1 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.RiskFlags == nil {
		t.Fatal("risk flags must encode as an empty list")
	}

	entries := logs.FilterMessage("event published").All()
	if len(entries) != 1 {
		t.Fatalf("expected one publish log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["routing_key"]; got != "candidate.42.scored" {
		t.Fatalf("unexpected routing key in log: %v", got)
	}
}

func TestCandidateScoredWithoutLogger(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch, nil)

	if err := p.CandidateScored(context.Background(), sampleScore()); err != nil {
		t.Fatalf("CandidateScored returned error: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.published))
	}
	if p.exchange != DefaultExchange {
		t.Fatalf("expected default exchange, got %q", p.exchange)
	}
}

func TestCandidateScoredErrors(t *testing.T) {
	boom := errors.New("channel closed")
	p := newTestPublisher(&fakeChannel{err: boom}, zap.NewNop())

	if err := p.CandidateScored(context.Background(), sampleScore()); !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.CandidateScored(ctx, sampleScore()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
