package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/metrics"
)

var (
	// ErrSessionNotFound - сессии с таким id нет (удалена или истекла)
	ErrSessionNotFound = errors.New("session not found")

	// ErrClosed - сервис сессий остановлен
	ErrClosed = errors.New("session service closed")
)

type entry struct {
	session  *Session
	inflight int
}

// coordinator владеет таблицей сессий. Все операции над таблицей - сообщения,
// которые горутина run выполняет по одному, поэтому блокировок нет.
//
// Сессия с незавершенной операцией (acquire без release) не удаляется
// периодической очисткой; она удаляется первой очисткой после release.
type coordinator struct {
	sessions map[uuid.UUID]*entry
	reqs     chan func()
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

func newCoordinator() *coordinator {
	return &coordinator{
		sessions: make(map[uuid.UUID]*entry),
		reqs:     make(chan func()),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// run обрабатывает сообщения и по тикеру удаляет сессии старше ttl
func (c *coordinator) run(ctx context.Context, interval, ttl time.Duration, now func() time.Time) {
	defer close(c.stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-c.reqs:
			fn()
		case <-ticker.C:
			if n := c.sweep(now().Add(-ttl)); n > 0 {
				log.Info().Int("removed", n).Dur("ttl", ttl).Msg("expired sessions removed")
			}
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		}
	}
}

func (c *coordinator) stop() {
	c.once.Do(func() { close(c.quit) })
	<-c.stopped
}

// exec выполняет fn в горутине координатора и ждет завершения
func (c *coordinator) exec(fn func()) error {
	done := make(chan struct{})
	select {
	case c.reqs <- func() { fn(); close(done) }:
	case <-c.stopped:
		return ErrClosed
	}
	<-done
	return nil
}

func (c *coordinator) put(s *Session) error {
	return c.exec(func() {
		c.sessions[s.ID()] = &entry{session: s}
		metrics.SetSessionsLive(len(c.sessions))
	})
}

func (c *coordinator) get(id uuid.UUID) (*Session, error) {
	var s *Session
	if err := c.exec(func() {
		if e, ok := c.sessions[id]; ok {
			s = e.session
		}
	}); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// acquire возвращает сессию и помечает операцию над ней как незавершенную
func (c *coordinator) acquire(id uuid.UUID) (*Session, error) {
	var s *Session
	if err := c.exec(func() {
		if e, ok := c.sessions[id]; ok {
			e.inflight++
			s = e.session
		}
	}); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// release завершает операцию; для уже удаленной сессии ничего не делает
func (c *coordinator) release(id uuid.UUID) {
	_ = c.exec(func() {
		if e, ok := c.sessions[id]; ok && e.inflight > 0 {
			e.inflight--
		}
	})
}

func (c *coordinator) remove(id uuid.UUID) (bool, error) {
	var removed bool
	err := c.exec(func() {
		if _, ok := c.sessions[id]; ok {
			delete(c.sessions, id)
			removed = true
		}
		metrics.SetSessionsLive(len(c.sessions))
	})
	return removed, err
}

func (c *coordinator) removeAll() (int, error) {
	var n int
	err := c.exec(func() {
		n = len(c.sessions)
		c.sessions = make(map[uuid.UUID]*entry)
		metrics.SetSessionsLive(0)
	})
	return n, err
}

// list возвращает сессии в порядке создания
func (c *coordinator) list() ([]*Session, error) {
	var out []*Session
	err := c.exec(func() {
		out = make([]*Session, 0, len(c.sessions))
		for _, e := range c.sessions {
			out = append(out, e.session)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, err
}

// sweep удаляет простаивающие сессии, созданные раньше cutoff.
// Вызывается только из горутины координатора.
func (c *coordinator) sweep(cutoff time.Time) int {
	n := 0
	for id, e := range c.sessions {
		if e.inflight == 0 && e.session.CreatedAt().Before(cutoff) {
			delete(c.sessions, id)
			n++
		}
	}
	if n > 0 {
		metrics.SetSessionsLive(len(c.sessions))
	}
	return n
}

func (c *coordinator) sweepNow(cutoff time.Time) (int, error) {
	var n int
	err := c.exec(func() { n = c.sweep(cutoff) })
	return n, err
}
