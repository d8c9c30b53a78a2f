package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"skyhaul/internal/models"
)

// EventLog appends events as zstd-compressed JSON lines, rotating to a
// new file every hour of wall time.
type EventLog struct {
	mu      sync.Mutex
	dir     string
	prefix  string
	file    *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
	curHour time.Time
	now     func() time.Time
}

type logLine struct {
	Wall time.Time        `json:"wall"`
	Tick uint64           `json:"tick"`
	Type models.EventType `json:"type"`
	Data any              `json:"data,omitempty"`
}

func NewEventLog(dir, prefix string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	return &EventLog{dir: dir, prefix: prefix, now: time.Now}, nil
}

// Append writes a batch of events, rotating first if the hour rolled
// over. Safe to install as an engine event sink; errors are returned,
// not logged, so the caller chooses the policy.
func (l *EventLog) Append(events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.now().UTC().Truncate(time.Hour)
	if l.file == nil || !hour.Equal(l.curHour) {
		if err := l.rotateLocked(hour); err != nil {
			return err
		}
	}
	for _, ev := range events {
		line := logLine{Wall: l.now().UTC(), Tick: ev.Tick, Type: ev.Type, Data: ev.Payload}
		data, err := json.Marshal(line)
		if err != nil {
			return err
		}
		if _, err := l.buf.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (l *EventLog) rotateLocked(hour time.Time) error {
	if err := l.closeCurrentLocked(); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour.Format("2006010215"))
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.enc = enc
	l.buf = bufio.NewWriter(enc)
	l.curHour = hour
	return nil
}

func (l *EventLog) closeCurrentLocked() error {
	if l.file == nil {
		return nil
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	if err := l.enc.Close(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file, l.enc, l.buf = nil, nil, nil
	return err
}

func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCurrentLocked()
}
