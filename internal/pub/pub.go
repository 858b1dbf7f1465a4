package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
)

// JournalEvent is emitted on the journal events topic after a journal has
// been committed. Downstream consumers (reporting, notifications) tail it.
type JournalEvent struct {
	EventType string         `json:"event_type"` // journal.posted | journal.reversed
	JournalID int64          `json:"journal_id"`
	BatchID   *int64         `json:"batch_id,omitempty"`
	Narrative string         `json:"narrative"`
	Entries   []JournalEntry `json:"entries"`
	Timestamp time.Time      `json:"timestamp"`
}

type JournalEntry struct {
	EntryID   int64 `json:"entry_id"`
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

// JournalEventPublisher writes journal events to Kafka. A nil publisher is a
// no-op, so callers never need to branch on whether eventing is configured.
type JournalEventPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewJournalEventPublisher(brokers []string, topic string, log *zap.Logger) *JournalEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Compression:  kafka.Snappy,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Debug(fmt.Sprintf(msg, args...))
		}),
	}
	return &JournalEventPublisher{writer: writer, log: log}
}

// PublishJournalPosted emits a journal.posted event. Publishing is
// best-effort: the journal is already committed, so failures are logged,
// not surfaced.
func (p *JournalEventPublisher) PublishJournalPosted(ctx context.Context, eventType string, j *domain.Journal, entries []*domain.Entry) {
	if p == nil || p.writer == nil {
		return
	}

	event := JournalEvent{
		EventType: eventType,
		JournalID: j.ID,
		BatchID:   j.BatchID,
		Narrative: j.UnstructuredNarrative,
		Timestamp: time.Now(),
	}
	for _, e := range entries {
		event.Entries = append(event.Entries, JournalEntry{
			EntryID:   e.ID,
			AccountID: e.AccountID,
			Amount:    e.Amount,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal journal event", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("journal-%d", j.ID)),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		p.log.Error("failed to publish journal event",
			zap.Int64("journal_id", j.ID), zap.Error(err))
	}
}

func (p *JournalEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
