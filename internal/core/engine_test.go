package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"pmon/internal/alert"
	"pmon/internal/checks"
	"pmon/internal/config"
	"pmon/internal/hub"
	"pmon/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu sync.Mutex

	acquire    bool
	acquireErr error
	renew      bool

	due       []storage.MonitorTarget
	targets   map[int64]storage.MonitorTarget
	rules     map[int64][]storage.RuleBinding
	recordErr map[int64]error

	acquireCalls int
	renewCalls   int
	dueCalls     int
	rulesCalls   int
	recorded     []int64
	scheduled    []int64
}

func newFakeStore(targets ...storage.MonitorTarget) *fakeStore {
	f := &fakeStore{
		acquire:   true,
		renew:     true,
		due:       targets,
		targets:   make(map[int64]storage.MonitorTarget),
		rules:     make(map[int64][]storage.RuleBinding),
		recordErr: make(map[int64]error),
	}
	for _, t := range targets {
		f.targets[t.Monitor.ID] = t
	}
	return f
}

func (f *fakeStore) AcquireLease(_ context.Context, _ string, _ time.Duration, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	return f.acquire, f.acquireErr
}

func (f *fakeStore) RenewLease(_ context.Context, _ string, _ time.Duration, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewCalls++
	return f.renew, nil
}

func (f *fakeStore) DueMonitors(_ context.Context, _ time.Time, limit int) ([]storage.MonitorTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dueCalls++
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeStore) MonitorTarget(_ context.Context, id int64) (*storage.MonitorTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (f *fakeStore) RecordProbe(_ context.Context, id int64, res storage.ProbeResult) (*storage.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordErr[id]; err != nil {
		return nil, err
	}
	f.recorded = append(f.recorded, id)

	m := f.targets[id].Monitor
	status := storage.StatusUp
	if res.Success {
		m.ConsecutiveSuccesses++
		m.ConsecutiveFailures = 0
	} else {
		status = storage.StatusDown
		m.ConsecutiveFailures++
		m.ConsecutiveSuccesses = 0
	}
	m.LastStatus = &status
	m.LastLatencyMs = res.LatencyMs
	return &m, nil
}

func (f *fakeStore) ScheduleNextRun(_ context.Context, id int64, intervalSeconds int, now time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, id)
	return storage.NextRunAt(intervalSeconds, now), nil
}

func (f *fakeStore) RulesFor(_ context.Context, monitorID int64) ([]storage.RuleBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rulesCalls++
	return f.rules[monitorID], nil
}

func (f *fakeStore) scheduledIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := slices.Clone(f.scheduled)
	slices.Sort(ids)
	return ids
}

type fakeProber struct {
	check func(host string) checks.Result
}

func (p *fakeProber) CheckPort(_ context.Context, host string, _ int, _ string, _ time.Duration) checks.Result {
	return p.check(host)
}

type fakeDispatcher struct {
	mu        sync.Mutex
	triggered []alert.Triggered
	outcome   alert.Outcome
}

func (d *fakeDispatcher) Dispatch(_ context.Context, t alert.Triggered) (alert.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggered = append(d.triggered, t)
	return d.outcome, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *fakePublisher) Publish(evt hub.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTarget(id int64, host string) storage.MonitorTarget {
	return storage.MonitorTarget{
		Monitor: storage.Monitor{ID: id, TenantID: 1, ServerID: id, ServiceID: 1, IntervalSeconds: 60, Enabled: true},
		Server:  storage.Server{ID: id, TenantID: 1, Name: host, Host: host},
		Service: storage.Service{ID: 1, Name: "https", Protocol: storage.ProtocolTCP, Port: 443},
	}
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:      true,
		InstanceID:   "node-a",
		PollInterval: time.Hour,
		LeaseTTL:     2 * time.Hour,
		BatchLimit:   50,
		WorkerCount:  4,
	}
}

func up(host string) checks.Result {
	ms := 12.5
	return checks.Result{Success: true, LatencyMs: &ms}
}

func newTestEngine(store *fakeStore, prober Prober, dispatcher Dispatcher, publisher Publisher) *Engine {
	e := NewEngine(schedulerConfig(), store, prober, dispatcher, publisher)
	e.SetClock(func() time.Time { return t0 })
	return e
}

func TestTick(t *testing.T) {
	ctx := context.Background()

	t.Run("Skips the tick without the lease", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "a"))
		store.acquire = false
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, nil)

		e.tick(ctx)

		if store.dueCalls != 0 {
			t.Errorf("Expected no due query, got %d", store.dueCalls)
		}
		if store.renewCalls != 0 {
			t.Errorf("Expected no renew, got %d", store.renewCalls)
		}
		if len(store.scheduledIDs()) != 0 {
			t.Errorf("Expected nothing rescheduled, got %v", store.scheduledIDs())
		}
		if e.IsLeader() {
			t.Error("Expected engine not to be leader")
		}
	})

	t.Run("Lease store error skips the tick", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "a"))
		store.acquireErr = errors.New("database is locked")
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, nil)

		e.tick(ctx)

		if store.dueCalls != 0 {
			t.Errorf("Expected no due query, got %d", store.dueCalls)
		}
	})

	t.Run("Empty batch renews the lease", func(t *testing.T) {
		store := newFakeStore()
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, nil)

		e.tick(ctx)

		if store.renewCalls != 1 {
			t.Errorf("Expected 1 renew, got %d", store.renewCalls)
		}
		if !e.IsLeader() {
			t.Error("Expected engine to be leader")
		}
	})

	t.Run("Batch probes and reschedules every due monitor", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "a"), newTarget(2, "b"), newTarget(3, "c"))
		pub := &fakePublisher{}
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, pub)

		e.tick(ctx)

		if got := store.scheduledIDs(); !slices.Equal(got, []int64{1, 2, 3}) {
			t.Errorf("Expected monitors 1,2,3 rescheduled, got %v", got)
		}
		if store.renewCalls != 1 {
			t.Errorf("Expected 1 renew after the batch, got %d", store.renewCalls)
		}
		if got := len(pub.types()); got != 3 {
			t.Errorf("Expected 3 probe events, got %d", got)
		}
	})

	t.Run("Failing monitor does not affect siblings", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "ok"), newTarget(2, "boom"), newTarget(3, "broken"))
		store.recordErr[3] = errors.New("disk full")
		prober := &fakeProber{check: func(host string) checks.Result {
			if host == "boom" {
				panic("probe exploded")
			}
			return up(host)
		}}
		e := newTestEngine(store, prober, &fakeDispatcher{}, nil)

		e.tick(ctx)

		if got := store.scheduledIDs(); !slices.Equal(got, []int64{1, 2, 3}) {
			t.Errorf("Expected every monitor rescheduled, got %v", got)
		}
		if !slices.Equal(store.recorded, []int64{1}) {
			t.Errorf("Expected only monitor 1 recorded, got %v", store.recorded)
		}
		if store.renewCalls != 1 {
			t.Errorf("Expected lease renewed after the batch, got %d", store.renewCalls)
		}
	})

	t.Run("Batch limit bounds the fetch", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "a"), newTarget(2, "b"), newTarget(3, "c"))
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, nil)
		e.config.BatchLimit = 2

		e.tick(ctx)

		if got := store.scheduledIDs(); !slices.Equal(got, []int64{1, 2}) {
			t.Errorf("Expected monitors 1,2 rescheduled, got %v", got)
		}
	})
}

func TestAlertsFromTick(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore(newTarget(1, "web-1"))
	store.rules[1] = []storage.RuleBinding{{
		Rule:    storage.AlertRule{ID: 10, MonitorID: 1, AlertType: storage.AlertTypeStatusChange, Enabled: true, CooldownMinutes: 5},
		Channel: storage.AlertChannel{ID: 20, ChannelType: storage.ChannelTypeWebhook, Enabled: true},
	}}
	down := &fakeProber{check: func(string) checks.Result {
		return checks.Result{Error: "connection refused"}
	}}

	t.Run("Attempted dispatch is published", func(t *testing.T) {
		dispatcher := &fakeDispatcher{outcome: alert.Outcome{Attempted: true, Success: true}}
		pub := &fakePublisher{}
		e := newTestEngine(store, down, dispatcher, pub)

		e.tick(ctx)

		if len(dispatcher.triggered) != 1 {
			t.Fatalf("Expected 1 triggered rule, got %d", len(dispatcher.triggered))
		}
		want := []string{hub.EventMonitorProbed, hub.EventAlertDispatched}
		if got := pub.types(); !slices.Equal(got, want) {
			t.Errorf("Expected events %v, got %v", want, got)
		}
	})

	t.Run("Skipped dispatch is not published", func(t *testing.T) {
		dispatcher := &fakeDispatcher{outcome: alert.Outcome{SkipReason: "cooldown"}}
		pub := &fakePublisher{}
		e := newTestEngine(store, down, dispatcher, pub)

		e.tick(ctx)

		if got := pub.types(); !slices.Equal(got, []string{hub.EventMonitorProbed}) {
			t.Errorf("Expected only the probe event, got %v", got)
		}
	})
}

func TestEngineLifecycle(t *testing.T) {
	t.Run("Stop waits for the in-flight batch", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		prober := &fakeProber{check: func(host string) checks.Result {
			once.Do(func() { close(started) })
			<-release
			return up(host)
		}}
		store := newFakeStore(newTarget(1, "slow"))
		e := newTestEngine(store, prober, &fakeDispatcher{}, nil)

		if err := e.Start(context.Background()); err != nil {
			t.Fatalf("Failed to start engine: %v", err)
		}
		if !e.IsRunning() {
			t.Error("Expected engine to be running")
		}

		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("Expected the first tick to start a probe")
		}

		stopped := make(chan struct{})
		go func() {
			e.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("Expected Stop to wait for the running probe")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Expected Stop to return after the batch finished")
		}

		if got := store.scheduledIDs(); !slices.Equal(got, []int64{1}) {
			t.Errorf("Expected the in-flight monitor to be rescheduled, got %v", got)
		}
		if e.IsRunning() {
			t.Error("Expected engine to be stopped")
		}
	})

	t.Run("Kill-switch keeps the engine idle", func(t *testing.T) {
		store := newFakeStore(newTarget(1, "a"))
		cfg := schedulerConfig()
		cfg.Enabled = false
		e := NewEngine(cfg, store, &fakeProber{check: up}, &fakeDispatcher{}, nil)

		if err := e.Start(context.Background()); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if e.IsRunning() {
			t.Error("Expected engine not to run when disabled")
		}
		time.Sleep(20 * time.Millisecond)
		if store.acquireCalls != 0 {
			t.Errorf("Expected no lease attempts, got %d", store.acquireCalls)
		}
	})

	t.Run("Start twice fails", func(t *testing.T) {
		store := newFakeStore()
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, nil)

		if err := e.Start(context.Background()); err != nil {
			t.Fatalf("Failed to start engine: %v", err)
		}
		defer e.Stop()

		if err := e.Start(context.Background()); err == nil {
			t.Error("Expected error on second start")
		}
	})

	t.Run("Generated instance id", func(t *testing.T) {
		cfg := schedulerConfig()
		cfg.InstanceID = ""
		a := NewEngine(cfg, newFakeStore(), &fakeProber{check: up}, &fakeDispatcher{}, nil)
		b := NewEngine(cfg, newFakeStore(), &fakeProber{check: up}, &fakeDispatcher{}, nil)

		if a.InstanceID() == "" || a.InstanceID() == b.InstanceID() {
			t.Errorf("Expected distinct generated ids, got '%s' and '%s'", a.InstanceID(), b.InstanceID())
		}
	})
}

func TestCheckNow(t *testing.T) {
	ctx := context.Background()

	t.Run("Probes and records without alerts or rescheduling", func(t *testing.T) {
		store := newFakeStore(newTarget(7, "db-1"))
		pub := &fakePublisher{}
		e := newTestEngine(store, &fakeProber{check: up}, &fakeDispatcher{}, pub)

		m, err := e.CheckNow(ctx, 7)
		if err != nil {
			t.Fatalf("Failed to check monitor: %v", err)
		}
		if m.LastStatus == nil || *m.LastStatus != storage.StatusUp {
			t.Errorf("Expected status up, got %v", m.LastStatus)
		}
		if !slices.Equal(store.recorded, []int64{7}) {
			t.Errorf("Expected monitor 7 recorded, got %v", store.recorded)
		}
		if len(store.scheduledIDs()) != 0 {
			t.Errorf("Expected no reschedule, got %v", store.scheduledIDs())
		}
		if store.rulesCalls != 0 {
			t.Errorf("Expected no rule evaluation, got %d lookups", store.rulesCalls)
		}
		if got := pub.types(); !slices.Equal(got, []string{hub.EventMonitorProbed}) {
			t.Errorf("Expected one probe event, got %v", got)
		}
	})

	t.Run("Unknown monitor", func(t *testing.T) {
		e := newTestEngine(newFakeStore(), &fakeProber{check: up}, &fakeDispatcher{}, nil)

		if _, err := e.CheckNow(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got: %v", err)
		}
	})
}

func TestLeaseManager(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	l := NewLeaseManager(store, "node-a", time.Minute)

	t.Run("Acquire makes leader", func(t *testing.T) {
		ok, err := l.Acquire(ctx, t0)
		if err != nil || !ok {
			t.Fatalf("Expected lease acquired, got %v, %v", ok, err)
		}
		if !l.IsLeader() {
			t.Error("Expected leader after acquire")
		}
	})

	t.Run("Failed renew drops leadership", func(t *testing.T) {
		store.renew = false
		ok, err := l.Renew(ctx, t0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok || l.IsLeader() {
			t.Error("Expected leadership lost")
		}
	})

	t.Run("Store error is not leadership", func(t *testing.T) {
		store.acquireErr = errors.New("connection reset")
		if _, err := l.Acquire(ctx, t0); err == nil {
			t.Error("Expected store error")
		}
		if l.IsLeader() {
			t.Error("Expected no leadership on error")
		}
	})
}
