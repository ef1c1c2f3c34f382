package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"attendance-kiosk/internal/metrics"
	"attendance-kiosk/internal/model"
	"attendance-kiosk/internal/queue"
)

// DefaultDedupWindow collapses repeat recognitions of one person.
const DefaultDedupWindow = 5 * time.Minute

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one journaled kiosk event.
type Entry struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	DocumentNumber string    `json:"document_number,omitempty"`
	Name           string    `json:"name,omitempty"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
	// Repeats counts recognitions collapsed into this entry.
	Repeats    int       `json:"repeats"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows a listing.
type Filter struct {
	DocumentNumber string
	Kind           string
	Limit          int
	Offset         int
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store is the persistence the service needs. Repository implements it.
type Store interface {
	RecentRecognition(ctx context.Context, document string, since time.Time) (*Entry, error)
	Insert(ctx context.Context, e Entry) (Entry, error)
	Touch(ctx context.Context, id string, seenAt time.Time) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Service records kiosk events with deduplication of repeat recognitions.
type Service struct {
	store       Store
	dedupWindow time.Duration
	log         *slog.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, dedupWindow time.Duration, log *slog.Logger) *Service {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, dedupWindow: dedupWindow, log: log}
}

func isRecognition(kind string) bool {
	return kind == model.EventRecognized || kind == model.EventAlreadyRegistered
}

// Record journals evt. A recognition of a document already recognized
// within the dedup window is folded into the earlier entry, which is
// returned with inserted false.
func (s *Service) Record(ctx context.Context, evt model.KioskEvent) (Entry, bool, error) {
	if evt.Kind == "" {
		return Entry{}, false, errors.New("event kind required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	if isRecognition(evt.Kind) && evt.DocumentNumber != "" {
		recent, err := s.store.RecentRecognition(ctx, evt.DocumentNumber, evt.OccurredAt.Add(-s.dedupWindow))
		if err != nil {
			return Entry{}, false, fmt.Errorf("look up recent recognition: %w", err)
		}
		if recent != nil {
			if err := s.store.Touch(ctx, recent.ID, evt.OccurredAt); err != nil {
				return Entry{}, false, fmt.Errorf("touch entry %s: %w", recent.ID, err)
			}
			recent.Repeats++
			if evt.OccurredAt.After(recent.LastSeenAt) {
				recent.LastSeenAt = evt.OccurredAt
			}
			return *recent, false, nil
		}
	}

	e, err := s.store.Insert(ctx, Entry{
		ID:             evt.ID,
		Kind:           evt.Kind,
		DocumentNumber: evt.DocumentNumber,
		Name:           evt.Name,
		Message:        evt.Message,
		OccurredAt:     evt.OccurredAt,
		LastSeenAt:     evt.OccurredAt,
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("insert entry: %w", err)
	}
	return e, true, nil
}

// List returns journal entries matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.store.List(ctx, f.normalized())
}

// Run consumes kiosk events from q until ctx ends. Malformed messages and
// failed writes are logged and skipped.
func (s *Service) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume kiosk events: %w", err)
	}
	s.log.Info("journal worker started", "dedup_window", s.dedupWindow)
	for msg := range messages {
		s.handle(ctx, msg)
	}
	s.log.Info("journal worker stopped")
	return nil
}

func (s *Service) handle(ctx context.Context, msg queue.Message) {
	var evt model.KioskEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		s.log.Warn("dropping malformed kiosk event", "type", msg.Type, "error", err)
		metrics.JournalWrites.WithLabelValues("failed").Inc()
		return
	}
	if evt.Kind == "" {
		evt.Kind = msg.Type
	}

	e, inserted, err := s.Record(ctx, evt)
	switch {
	case err != nil:
		s.log.Error("journal write failed", "kind", evt.Kind, "event", evt.ID, "error", err)
		metrics.JournalWrites.WithLabelValues("failed").Inc()
	case inserted:
		s.log.Debug("journal entry written", "kind", e.Kind, "entry", e.ID)
		metrics.JournalWrites.WithLabelValues("inserted").Inc()
	default:
		s.log.Debug("recognition folded into earlier entry", "entry", e.ID, "repeats", e.Repeats)
		metrics.JournalWrites.WithLabelValues("deduplicated").Inc()
	}
}
