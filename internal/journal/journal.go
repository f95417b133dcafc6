// Package journal persists bridge diagnostics to SQLite: delivered
// events, dropped events and callback failures. It is an observability
// sink only; registry state never touches the database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/database"
)

const (
	// queueSize buffers records between the event path and the writer
	// goroutine. When full, records are dropped rather than blocking
	// event delivery.
	queueSize = 1024

	// pruneEvery triggers a prune pass after this many inserts.
	pruneEvery = 256
)

// Logger defines the logging interface used by the journal.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type recordKind int

const (
	kindEvent recordKind = iota
	kindDrop
	kindCallback
)

type record struct {
	kind     recordKind
	event    bridge.Event
	entityID string
	reason   string
}

// Journal is an asynchronous recorder backed by SQLite. A single writer
// goroutine drains the queue, so Record* calls never block on the
// database. Implements bridge.Recorder.
type Journal struct {
	db        *database.DB
	maxEvents int
	logger    Logger

	queue chan record
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	inserts int
}

// New creates a journal and starts its writer goroutine. maxEvents caps
// table growth; zero or negative disables pruning.
func New(db *database.DB, maxEvents int, logger Logger) *Journal {
	if logger == nil {
		logger = noopLogger{}
	}
	j := &Journal{
		db:        db,
		maxEvents: maxEvents,
		logger:    logger,
		queue:     make(chan record, queueSize),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// RecordEvent persists one delivered event.
func (j *Journal) RecordEvent(ev bridge.Event) {
	j.enqueue(record{kind: kindEvent, event: ev})
}

// RecordDrop persists one dropped native event with its reason.
func (j *Journal) RecordDrop(reason string, ev bridge.Event) {
	j.enqueue(record{kind: kindDrop, event: ev, reason: reason})
}

// RecordCallbackFailure persists one callback error or recovered panic.
func (j *Journal) RecordCallbackFailure(entityID string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	j.enqueue(record{kind: kindCallback, entityID: entityID, reason: reason})
}

// enqueue holds the mutex across the send so Close cannot close the
// queue between the closed check and the send.
func (j *Journal) enqueue(r record) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}

	select {
	case j.queue <- r:
	default:
		j.logger.Warn("journal queue full, dropping record")
	}
}

// Close stops accepting records, drains the queue and waits for the
// writer to finish. Safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	return nil
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for r := range j.queue {
		if err := j.insert(r); err != nil {
			j.logger.Error("journal write failed", "error", err)
			continue
		}
		j.inserts++
		if j.maxEvents > 0 && j.inserts%pruneEvery == 0 {
			if err := j.prune(); err != nil {
				j.logger.Error("journal prune failed", "error", err)
			}
		}
	}
}

func (j *Journal) insert(r record) error {
	ctx := context.Background()

	switch r.kind {
	case kindEvent:
		dataJSON, err := marshalData(r.event.Data)
		if err != nil {
			return err
		}
		_, err = j.db.ExecContext(ctx,
			`INSERT INTO events (entity_id, event_type, correlation_tag, action_id, data, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.event.EntityID, string(r.event.Type), r.event.CorrelationTag,
			r.event.ActionID, dataJSON,
			r.event.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting event: %w", err)
		}

	case kindDrop:
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO delivery_failures (entity_id, event_type, kind, reason)
			 VALUES (?, ?, 'drop', ?)`,
			r.event.EntityID, string(r.event.Type), r.reason,
		)
		if err != nil {
			return fmt.Errorf("inserting drop record: %w", err)
		}

	case kindCallback:
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO delivery_failures (entity_id, kind, reason)
			 VALUES (?, 'callback', ?)`,
			r.entityID, r.reason,
		)
		if err != nil {
			return fmt.Errorf("inserting callback failure: %w", err)
		}
	}
	return nil
}

// prune deletes the oldest rows past the configured cap.
func (j *Journal) prune() error {
	_, err := j.db.Exec(
		`DELETE FROM events WHERE id NOT IN
		 (SELECT id FROM events ORDER BY id DESC LIMIT ?)`,
		j.maxEvents,
	)
	if err != nil {
		return fmt.Errorf("pruning events: %w", err)
	}
	return nil
}

func marshalData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshalling event data: %w", err)
	}
	return string(b), nil
}

// Entry is one journalled event returned by Query.
type Entry struct {
	ID             int64          `json:"id"`
	EntityID       string         `json:"entity_id"`
	EventType      string         `json:"event_type"`
	CorrelationTag string         `json:"correlation_tag,omitempty"`
	ActionID       string         `json:"action_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Filter controls which journal entries Query returns.
type Filter struct {
	EntityID  string // optional: restrict to one entity
	EventType string // optional: restrict to one event type
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains paginated journal entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// Query returns journalled events matching the filter, newest first.
func (j *Journal) Query(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}
	if filter.Limit > maxQueryLimit {
		filter.Limit = maxQueryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := ""
	var args []any
	switch {
	case filter.EntityID != "" && filter.EventType != "":
		where = "WHERE entity_id = ? AND event_type = ?"
		args = append(args, filter.EntityID, filter.EventType)
	case filter.EntityID != "":
		where = "WHERE entity_id = ?"
		args = append(args, filter.EntityID)
	case filter.EventType != "":
		where = "WHERE event_type = ?"
		args = append(args, filter.EventType)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM events " + where
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	query := `SELECT id, entity_id, event_type, correlation_tag, action_id, data, occurred_at
		 FROM events ` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		var dataJSON sql.NullString
		var occurredAt string

		if err := rows.Scan(&e.ID, &e.EntityID, &e.EventType,
			&e.CorrelationTag, &e.ActionID, &dataJSON, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		if dataJSON.Valid && dataJSON.String != "" && dataJSON.String != "{}" {
			var data map[string]any
			if json.Unmarshal([]byte(dataJSON.String), &data) == nil {
				e.Data = data
			}
		}

		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// FailureCount returns the number of recorded delivery failures.
func (j *Journal) FailureCount(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_failures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting delivery failures: %w", err)
	}
	return n, nil
}
