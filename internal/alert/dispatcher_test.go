package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pmon/internal/config"
	"pmon/internal/storage"
)

// memoryStore keeps rules and history in memory.
type memoryStore struct {
	mu      sync.Mutex
	rules   map[int64]*storage.AlertRule
	history []storage.AlertHistory
	failAt  string
}

func newMemoryStore(rules ...storage.AlertRule) *memoryStore {
	s := &memoryStore{rules: make(map[int64]*storage.AlertRule)}
	for i := range rules {
		r := rules[i]
		s.rules[r.ID] = &r
	}
	return s
}

func (s *memoryStore) CanTrigger(_ context.Context, ruleID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt == "can_trigger" {
		return false, errors.New("database is locked")
	}
	r, ok := s.rules[ruleID]
	if !ok {
		return false, storage.ErrNotFound
	}
	return storage.CooldownElapsed(r, now), nil
}

func (s *memoryStore) MarkTriggered(_ context.Context, ruleID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[ruleID].LastTriggeredAt = &now
	return nil
}

func (s *memoryStore) RecordHistory(_ context.Context, h *storage.AlertHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *h)
	return nil
}

// stubSender records calls and returns err, or panics when panicWith is set.
type stubSender struct {
	channelType string
	err         error
	panicWith   any
	calls       []Message
}

func (s *stubSender) Type() string { return s.channelType }

func (s *stubSender) Send(_ context.Context, _ storage.AlertChannel, msg Message) error {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.calls = append(s.calls, msg)
	return s.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestDispatcher(store Store, sender *stubSender, c *clock) *Dispatcher {
	d := NewDispatcher(store, config.AlertConfig{Webhook: config.WebhookConfig{Timeout: time.Second}})
	d.RegisterSender(sender)
	d.SetClock(c.now)
	return d
}

func triggered(b storage.RuleBinding) Triggered {
	return Triggered{Binding: b, Message: "web-1 (10.0.0.1:443/tcp) is DOWN", Details: map[string]any{"port": 443}}
}

func TestDispatchCooldown(t *testing.T) {
	b := binding(storage.AlertTypeStatusChange)
	store := newMemoryStore(b.Rule)
	sender := &stubSender{channelType: storage.ChannelTypeWebhook}
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := newTestDispatcher(store, sender, c)
	ctx := context.Background()

	first, err := d.Dispatch(ctx, triggered(b))
	if err != nil || !first.Success {
		t.Fatalf("Expected first dispatch to succeed, got %+v, %v", first, err)
	}

	c.t = c.t.Add(2 * time.Minute)
	second, err := d.Dispatch(ctx, triggered(b))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if second.Attempted || second.SkipReason != "cooldown" {
		t.Errorf("Expected cooldown skip, got %+v", second)
	}

	c.t = c.t.Add(4 * time.Minute)
	third, err := d.Dispatch(ctx, triggered(b))
	if err != nil || !third.Success {
		t.Errorf("Expected dispatch after cooldown, got %+v, %v", third, err)
	}

	if len(sender.calls) != 2 {
		t.Errorf("Expected 2 sends, got %d", len(sender.calls))
	}
	if len(store.history) != 2 {
		t.Errorf("Expected 2 history rows, got %d", len(store.history))
	}
	if !store.rules[b.Rule.ID].LastTriggeredAt.Equal(c.t) {
		t.Errorf("Expected last triggered %v, got %v", c.t, store.rules[b.Rule.ID].LastTriggeredAt)
	}
}

func TestDispatchFailure(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Failed send is recorded and does not start cooldown", func(t *testing.T) {
		b := binding(storage.AlertTypeStatusChange)
		store := newMemoryStore(b.Rule)
		sender := &stubSender{channelType: storage.ChannelTypeWebhook, err: errors.New("webhook responded with status 503")}
		d := newTestDispatcher(store, sender, &clock{t: start})

		out, err := d.Dispatch(ctx, triggered(b))
		if err != nil {
			t.Fatalf("Expected delivery failure not to be an error, got %v", err)
		}
		if !out.Attempted || out.Success || out.Error != "webhook responded with status 503" {
			t.Errorf("Unexpected outcome: %+v", out)
		}
		if len(store.history) != 1 || store.history[0].SentSuccessfully {
			t.Fatalf("Expected one failed history row, got %+v", store.history)
		}
		if store.history[0].ErrorMessage == nil || *store.history[0].ErrorMessage != out.Error {
			t.Errorf("Expected error text in history, got %v", store.history[0].ErrorMessage)
		}
		if string(store.history[0].Details) != `{"port":443}` {
			t.Errorf("Expected serialized details, got %s", store.history[0].Details)
		}
		if store.rules[b.Rule.ID].LastTriggeredAt != nil {
			t.Error("Expected failed send not to mark the rule triggered")
		}
	})

	t.Run("Panicking sender is recovered", func(t *testing.T) {
		b := binding(storage.AlertTypeStatusChange)
		store := newMemoryStore(b.Rule)
		sender := &stubSender{channelType: storage.ChannelTypeWebhook, panicWith: "boom"}
		d := newTestDispatcher(store, sender, &clock{t: start})

		out, err := d.Dispatch(ctx, triggered(b))
		if err != nil || out.Success {
			t.Fatalf("Expected recorded failure, got %+v, %v", out, err)
		}
		if out.Error != "webhook sender panicked: boom" {
			t.Errorf("Unexpected error text: %s", out.Error)
		}
		if len(store.history) != 1 {
			t.Errorf("Expected one history row, got %d", len(store.history))
		}
	})

	t.Run("Unknown channel type is a failed attempt", func(t *testing.T) {
		b := binding(storage.AlertTypeStatusChange)
		b.Channel.ChannelType = "pager"
		store := newMemoryStore(b.Rule)
		d := newTestDispatcher(store, &stubSender{channelType: storage.ChannelTypeWebhook}, &clock{t: start})

		out, _ := d.Dispatch(ctx, triggered(b))
		if out.Success || out.Error != "unsupported channel type: pager" {
			t.Errorf("Unexpected outcome: %+v", out)
		}
	})

	t.Run("Disabled channel is skipped without history", func(t *testing.T) {
		b := binding(storage.AlertTypeStatusChange)
		b.Channel.Enabled = false
		store := newMemoryStore(b.Rule)
		sender := &stubSender{channelType: storage.ChannelTypeWebhook}
		d := newTestDispatcher(store, sender, &clock{t: start})

		out, err := d.Dispatch(ctx, triggered(b))
		if err != nil || out.Attempted || out.SkipReason != "channel disabled" {
			t.Errorf("Expected channel disabled skip, got %+v, %v", out, err)
		}
		if len(store.history) != 0 || len(sender.calls) != 0 {
			t.Error("Expected no send and no history")
		}
	})

	t.Run("Store failure is returned", func(t *testing.T) {
		b := binding(storage.AlertTypeStatusChange)
		store := newMemoryStore(b.Rule)
		store.failAt = "can_trigger"
		d := newTestDispatcher(store, &stubSender{channelType: storage.ChannelTypeWebhook}, &clock{t: start})

		if _, err := d.Dispatch(ctx, triggered(b)); err == nil {
			t.Error("Expected store error")
		}
	})
}

func TestSimulatedSenders(t *testing.T) {
	for _, s := range []Sender{NewSMSSender(), NewPushSender()} {
		t.Run(s.Type(), func(t *testing.T) {
			ok := storage.AlertChannel{ChannelType: s.Type(), Config: []byte(`{"phone_number":"+15550100"}`)}
			if err := s.Send(context.Background(), ok, Message{Text: "hi"}); err != nil {
				t.Errorf("Expected simulated success, got %v", err)
			}

			bad := storage.AlertChannel{ChannelType: s.Type(), Config: []byte(`{broken`)}
			if err := s.Send(context.Background(), bad, Message{Text: "hi"}); err == nil {
				t.Error("Expected error for invalid config")
			}
		})
	}
}
