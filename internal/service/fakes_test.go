package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/provider"
	"github.com/teeshirtminute/tm-autoreply/internal/queue"
	"github.com/teeshirtminute/tm-autoreply/internal/storeapi"
)

type fakeSettingsRepo struct {
	getFn  func(ctx context.Context) (*domain.Settings, error)
	saveFn func(ctx context.Context, s *domain.Settings) error
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	if f.getFn != nil {
		return f.getFn(ctx)
	}
	return &domain.Settings{}, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, s *domain.Settings) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, s)
	}
	return nil
}

func settingsRepo(s domain.Settings) *fakeSettingsRepo {
	return &fakeSettingsRepo{getFn: func(context.Context) (*domain.Settings, error) {
		copied := s
		return &copied, nil
	}}
}

type fakeHistoryRepo struct {
	mu    sync.Mutex
	added []domain.DispatchOutcome
	addFn func(ctx context.Context, o *domain.DispatchOutcome) error
}

func (f *fakeHistoryRepo) Add(ctx context.Context, o *domain.DispatchOutcome) error {
	if f.addFn != nil {
		if err := f.addFn(ctx, o); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = fmt.Sprintf("outcome-%d", len(f.added)+1)
	f.added = append(f.added, *o)
	return nil
}

func (f *fakeHistoryRepo) List(ctx context.Context, limit int) ([]domain.DispatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchOutcome(nil), f.added...), nil
}

func (f *fakeHistoryRepo) Last(ctx context.Context) (*domain.DispatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.added) == 0 {
		return nil, domain.ErrNotFound
	}
	last := f.added[len(f.added)-1]
	return &last, nil
}

func (f *fakeHistoryRepo) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = nil
	return nil
}

func (f *fakeHistoryRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.added)), nil
}

type fakeCounter struct {
	mu          sync.Mutex
	count       int
	incrementFn func(ctx context.Context, phone string, at time.Time) error
}

func (f *fakeCounter) Increment(ctx context.Context, phone string, at time.Time) (*domain.DailySendCounter, error) {
	if f.incrementFn != nil {
		if err := f.incrementFn(ctx, phone, at); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return &domain.DailySendCounter{Count: f.count, LastPhone: phone, LastAt: at}, nil
}

func (f *fakeCounter) Get(ctx context.Context) (*domain.DailySendCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.DailySendCounter{Count: f.count}, nil
}

type fakeFetcher struct {
	calls   int
	fetchFn func(ctx context.Context, endpoint storeapi.Endpoint) (*domain.RemoteStatusMessage, error)
}

func (f *fakeFetcher) FetchOutboundMessage(ctx context.Context, endpoint storeapi.Endpoint) (*domain.RemoteStatusMessage, error) {
	f.calls++
	if f.fetchFn != nil {
		return f.fetchFn(ctx, endpoint)
	}
	return &domain.RemoteStatusMessage{}, nil
}

type fakeChannel struct {
	name   domain.Channel
	sent   []provider.Message
	sendFn func(ctx context.Context, msg provider.Message) error
}

func (f *fakeChannel) Name() domain.Channel { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg provider.Message) error {
	f.sent = append(f.sent, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

type fakeSignal struct {
	armed    bool
	armCalls int
}

func (f *fakeSignal) Arm(time.Time) {
	f.armed = true
	f.armCalls++
}

func (f *fakeSignal) Disarm() { f.armed = false }

type fakeNotifier struct {
	got      []bridge.Notification
	notifyFn func(ctx context.Context, n bridge.Notification) error
}

func (f *fakeNotifier) Notify(ctx context.Context, n bridge.Notification) error {
	f.got = append(f.got, n)
	if f.notifyFn != nil {
		return f.notifyFn(ctx, n)
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.MissedCallMessage
	publishFn func(ctx context.Context, queueName string, msg queue.MissedCallMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.MissedCallMessage) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeMissedCallHandler struct {
	handleFn func(ctx context.Context, phone string) (*domain.DispatchOutcome, error)
}

func (f *fakeMissedCallHandler) HandleMissedCall(ctx context.Context, phone string) (*domain.DispatchOutcome, error) {
	if f.handleFn != nil {
		return f.handleFn(ctx, phone)
	}
	return nil, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
