package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

func newTestPublisher(t *testing.T, cfg Config) (*RedisPublisher, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return WithClient(rdb, cfg), mr, rdb
}

func TestPublishStatus_StoresStateWithTTL(t *testing.T) {
	p, mr, _ := newTestPublisher(t, Config{TTL: 60})
	ctx := context.Background()
	st := session.Status{ID: uuid.New(), SourceProfile: "legacy", Pending: 2, OK: 1, Attempted: 1}

	if err := p.PublishStatus(ctx, st); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}

	key := "tdtp:migrator:session:" + st.ID.String() + ":state"
	if !mr.Exists(key) {
		t.Fatalf("key %q not set", key)
	}
	if ttl := mr.TTL(key); ttl != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", ttl)
	}

	got, err := p.Latest(ctx, st.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != st.ID || got.Pending != 2 || got.SourceProfile != "legacy" {
		t.Errorf("Latest() = %+v", got)
	}
}

func TestPublishStatus_PublishesEvent(t *testing.T) {
	p, _, rdb := newTestPublisher(t, Config{Channel: "migrator:test"})
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "migrator:test")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	st := session.Status{ID: uuid.New(), Failed: 1}
	if err := p.PublishStatus(ctx, st); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != "session.progress" || ev.Status.ID != st.ID || ev.Status.Failed != 1 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestLatest_NotFound(t *testing.T) {
	p, _, _ := newTestPublisher(t, Config{})
	if _, err := p.Latest(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestPublishStatus_RedisDown(t *testing.T) {
	p, mr, _ := newTestPublisher(t, Config{})
	mr.Close()
	if err := p.PublishStatus(context.Background(), session.Status{ID: uuid.New()}); err == nil {
		t.Error("PublishStatus() must fail when redis is unavailable")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.Addr != "localhost:6379" || c.KeyPrefix != "tdtp:migrator:" || c.Channel != "tdtp:migrator:events" {
		t.Errorf("defaults = %+v", c)
	}
	p := NewRedisPublisher(Config{KeyPrefix: "x:"})
	defer p.Close()
	id := uuid.MustParse("00000000-0000-4000-8000-000000000000")
	if got := p.StateKey(id); got != "x:session:00000000-0000-4000-8000-000000000000:state" {
		t.Errorf("StateKey = %q", got)
	}
}
