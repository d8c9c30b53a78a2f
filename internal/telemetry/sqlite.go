// Package telemetry persists simulation events for later analysis: a
// sqlite store for queryable history and a compressed JSONL stream for
// bulk replay.
package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"skyhaul/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	tick    INTEGER NOT NULL,
	type    TEXT    NOT NULL,
	payload TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Recorder writes engine events to sqlite from a single background
// goroutine. Record never blocks the tick; bursts beyond the queue are
// dropped with a warning.
type Recorder struct {
	db    *sql.DB
	queue chan []models.Event
	done  chan struct{}
	log   *slog.Logger

	closeOnce sync.Once
}

func NewRecorder(path string, log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	// single writer, no lock contention to manage
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("telemetry pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry schema: %w", err)
	}
	r := &Recorder{
		db:    db,
		queue: make(chan []models.Event, 256),
		done:  make(chan struct{}),
		log:   log,
	}
	go r.loop()
	return r, nil
}

// Record queues a batch of events. Safe to install as an engine event
// sink.
func (r *Recorder) Record(events []models.Event) {
	if len(events) == 0 {
		return
	}
	select {
	case r.queue <- events:
	default:
		r.log.Warn("telemetry queue full, dropping batch", "count", len(events))
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for batch := range r.queue {
		if err := r.writeBatch(batch); err != nil {
			r.log.Error("telemetry write failed", "err", err)
		}
	}
}

func (r *Recorder) writeBatch(batch []models.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO events (tick, type, payload) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ev := range batch {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(ev.Tick, string(ev.Type), string(payload)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CountByType reports how many events of the given type were recorded.
func (r *Recorder) CountByType(t models.EventType) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM events WHERE type = ?", string(t)).Scan(&n)
	return n, err
}

// Close drains the queue, flushes pending writes, and closes the db.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
	return r.db.Close()
}
