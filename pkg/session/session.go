// Package session - буферизованная миграция с повторами.
//
// Сессия материализует результат SELECT источника в очередь и отдает строки
// по одной. Неудачная строка уходит в конец очереди (одна «плохая» строка не
// блокирует остальные) и после исчерпания попыток попадает в список failed.
// Журнал и failed ограничены кольцевыми буферами.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
)

// Емкости кольцевых буферов сессии
const (
	MaxFailedRows = 5000
	MaxLogEntries = 1000
)

// Level - уровень записи журнала сессии
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// LogEntry - запись журнала сессии
type LogEntry struct {
	At      time.Time `json:"at"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// BufferedRow - строка в очереди и счетчик ее попыток
type BufferedRow struct {
	Row       extract.Row
	Attempts  int
	LastError string
}

// FailedRow - строка, исчерпавшая попытки
type FailedRow struct {
	Row      extract.Row `json:"row"`
	Error    string      `json:"error"`
	Attempts int         `json:"attempts"`
	FailedAt time.Time   `json:"failedAt"`
}

// Status - снимок состояния сессии
type Status struct {
	ID            uuid.UUID  `json:"id"`
	CreatedAt     time.Time  `json:"createdAt"`
	SourceProfile string     `json:"sourceProfile"`
	SQL           string     `json:"sql"`
	Pending       int        `json:"pending"`
	Attempted     int        `json:"attempted"`
	OK            int        `json:"ok"`
	Error         int        `json:"error"`
	Failed        int        `json:"failed"`
	LastLogs      []LogEntry `json:"lastLogs"`
}

// Session - очередь строк одной миграции.
// Все изменения очереди, буферов и счетчиков выполняются под одним mutex.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	profile   string
	sql       string

	mu        sync.Mutex
	pending   []*BufferedRow
	failed    *ring[FailedRow]
	logs      *ring[LogEntry]
	attempted int
	ok        int
	errors    int
	now       func() time.Time
}

func newSession(profile, sql string, rows []extract.Row, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:        uuid.New(),
		createdAt: now(),
		profile:   profile,
		sql:       sql,
		pending:   make([]*BufferedRow, 0, len(rows)),
		failed:    newRing[FailedRow](MaxFailedRows),
		logs:      newRing[LogEntry](MaxLogEntries),
		now:       now,
	}
	for _, r := range rows {
		s.pending = append(s.pending, &BufferedRow{Row: r})
	}
	return s
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Profile() string      { return s.profile }
func (s *Session) SQL() string          { return s.sql }

// PendingCount - размер очереди
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// pollNext снимает строку с головы очереди; nil - очередь пуста
func (s *Session) pollNext() *BufferedRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	b := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return b
}

func (s *Session) markOk(message, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted++
	s.ok++
	s.appendLog(LevelInfo, message, details)
}

// registerFailure учитывает неудачную попытку. Строка возвращается в конец
// очереди либо, если попытки исчерпаны, переносится в failed - тогда
// возвращается ее снимок.
func (s *Session) registerFailure(b *BufferedRow, message string, maxAttempts int) *FailedRow {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b.Attempts++
	b.LastError = message
	s.attempted++
	s.errors++
	s.appendLog(LevelError, message, fmt.Sprintf("attempt=%d/%d", b.Attempts, maxAttempts))

	if b.Attempts >= maxAttempts {
		f := FailedRow{Row: b.Row, Error: b.LastError, Attempts: b.Attempts, FailedAt: s.now()}
		s.failed.push(f)
		s.appendLog(LevelError, "row marked as FAILED permanently", b.LastError)
		return &f
	}
	s.pending = append(s.pending, b)
	return nil
}

func (s *Session) appendLog(level Level, message, details string) {
	s.logs.push(LogEntry{At: s.now(), Level: level, Message: message, Details: details})
}

// Status возвращает согласованный снимок сессии с последними logLimit записями журнала
func (s *Session) Status(logLimit int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:            s.id,
		CreatedAt:     s.createdAt,
		SourceProfile: s.profile,
		SQL:           s.sql,
		Pending:       len(s.pending),
		Attempted:     s.attempted,
		OK:            s.ok,
		Error:         s.errors,
		Failed:        s.failed.len(),
		LastLogs:      s.logs.last(logLimit),
	}
}

// FailedRows возвращает до max последних строк из failed (max < 1 - одна строка)
func (s *Session) FailedRows(max int) []FailedRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.last(max)
}
