package runner

import (
	"sync"
	"time"
)

// DefaultLogCapacity - сколько записей хранит общий журнал пакетных запусков
const DefaultLogCapacity = 10000

// Entry - запись журнала пакетного запуска. Row=0 - сообщение уровня запуска.
type Entry struct {
	At      time.Time `json:"at"`
	Row     int       `json:"rowNumber"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Log - общий журнал пакетных запусков с ограниченной емкостью.
// Каждый Run начинает журнал заново.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewLog создает журнал; capacity <= 0 - DefaultLogCapacity
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity}
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *Log) Info(row int, msg string)  { l.add(row, "INFO", msg) }
func (l *Log) Error(row int, msg string) { l.add(row, "ERROR", msg) }

func (l *Log) add(row int, level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{At: time.Now(), Row: row, Level: level, Message: msg})
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
}

// Snapshot возвращает до limit последних записей; limit <= 0 - все
func (l *Log) Snapshot(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := 0
	if limit > 0 && len(l.entries) > limit {
		from = len(l.entries) - limit
	}
	out := make([]Entry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out
}
