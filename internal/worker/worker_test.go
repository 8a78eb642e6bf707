package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
)

func highRiskEvaluation(id, userID string) *domain.Evaluation {
	return &domain.Evaluation{
		ID:       id,
		TenantID: "tenant-test",
		UserID:   userID,
		Month:    "2025-07",
		Risks: []domain.RiskItem{
			{
				Dimension: domain.DimDeficit,
				Severity:  domain.SeverityHigh,
				Summary:   "Deficit risk: high",
			},
			{
				Dimension: domain.DimSavings,
				Severity:  domain.SeverityLow,
				Summary:   "Savings risk: low",
			},
		},
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	lru := cache.NewLRUCache(100)
	defer lru.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, lru, Config{})

		cfg := Config{
			TenantIDs: []string{"tenant-001"},
		}

		err := w.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = w.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("AlertForHighSeverity", func(t *testing.T) {
		w := NewWorker(eventBus, lru, Config{})

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool
		var alertPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertPayload = msg.Payload
			alertReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(highRiskEvaluation("eval-001", "user-001"))
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicEvaluationCompleted, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Fatal("expected alert to be published for high-severity dimension")
		}

		var alert Alert
		if err := json.Unmarshal(alertPayload, &alert); err != nil {
			t.Fatalf("failed to parse alert: %v", err)
		}

		if alert.Dimension != domain.DimDeficit {
			t.Errorf("expected dimension %s, got %s", domain.DimDeficit, alert.Dimension)
		}
		if alert.UserID != "user-001" {
			t.Errorf("expected userID 'user-001', got '%s'", alert.UserID)
		}
		if alert.Severity != domain.SeverityHigh {
			t.Errorf("expected severity high, got %s", alert.Severity)
		}
	})

	t.Run("Throttling", func(t *testing.T) {
		throttleCache := cache.NewLRUCache(100)
		defer throttleCache.Close()

		w := NewWorker(eventBus, throttleCache, Config{
			AlertWindow:        time.Minute,
			MaxAlertsPerWindow: 2,
		})

		cfg := Config{
			TenantIDs: []string{"tenant-throttle"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertCount atomic.Int32

		eventBus.Subscribe(context.Background(), "tenant-throttle", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertCount.Add(1)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Same user and dimension five times; only two alerts should pass
		for i := 0; i < 5; i++ {
			eval := highRiskEvaluation("eval-throttle", "user-002")
			eval.TenantID = "tenant-throttle"
			payload, _ := json.Marshal(eval)
			eventBus.Publish(context.Background(), "tenant-throttle", domain.TopicEvaluationCompleted, payload)
		}

		time.Sleep(200 * time.Millisecond)

		if alertCount.Load() != 2 {
			t.Errorf("expected 2 alerts after throttling, got %d", alertCount.Load())
		}
	})

	t.Run("LowSeverityIgnored", func(t *testing.T) {
		w := NewWorker(eventBus, lru, Config{})

		cfg := Config{
			TenantIDs: []string{"tenant-low"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-low", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		eval := &domain.Evaluation{
			ID:       "eval-low",
			TenantID: "tenant-low",
			UserID:   "user-003",
			Month:    "2025-07",
			Risks: []domain.RiskItem{
				{Dimension: domain.DimSavings, Severity: domain.SeverityMedium},
			},
		}
		payload, _ := json.Marshal(eval)
		eventBus.Publish(context.Background(), "tenant-low", domain.TopicEvaluationCompleted, payload)

		time.Sleep(100 * time.Millisecond)

		if alertReceived.Load() {
			t.Error("expected no alert for medium severity")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, lru, Config{})

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}
