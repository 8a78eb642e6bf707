// Package worker provides async alert dispatch for completed evaluations.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// Worker listens for completed evaluations and publishes throttled alerts
// for high-severity risk dimensions.
type Worker struct {
	bus   domain.EventBus
	cache domain.Cache

	alertWindow   time.Duration
	maxAlerts     int64
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global for dev)
	TenantIDs []string

	// AlertWindow is the throttle window per user and dimension.
	AlertWindow time.Duration

	// MaxAlertsPerWindow caps alerts per user and dimension within a window.
	MaxAlertsPerWindow int64
}

// NewWorker creates a new async alert worker.
func NewWorker(bus domain.EventBus, cache domain.Cache, cfg Config) *Worker {
	window := cfg.AlertWindow
	if window == 0 {
		window = 24 * time.Hour
	}
	maxAlerts := cfg.MaxAlertsPerWindow
	if maxAlerts == 0 {
		maxAlerts = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		cache:       cache,
		alertWindow: window,
		maxAlerts:   maxAlerts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing evaluations for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicEvaluationCompleted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicEvaluationCompleted, func(ctx context.Context, msg *domain.Message) error {
		return w.processEvaluation(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicEvaluationCompleted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processEvaluation(ctx, msg.TenantID, msg)
}

// Alert is the payload published to the alert topic for a single
// high-severity risk dimension.
type Alert struct {
	EvaluationID string           `json:"evaluationId"`
	TenantID     string           `json:"tenantId"`
	UserID       string           `json:"userId"`
	Month        string           `json:"month"`
	Dimension    domain.Dimension `json:"dimension"`
	Severity     domain.Severity  `json:"severity"`
	Summary      string           `json:"summary"`
}

// processEvaluation inspects a completed evaluation and publishes alerts
// for high-severity dimensions, throttled per user and dimension.
func (w *Worker) processEvaluation(ctx context.Context, tenantID string, msg *domain.Message) error {
	var eval domain.Evaluation
	if err := json.Unmarshal(msg.Payload, &eval); err != nil {
		slog.Error("failed to parse evaluation message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if eval.TenantID != "" {
		tenantID = eval.TenantID
	}

	for _, risk := range eval.Risks {
		if risk.Severity != domain.SeverityHigh {
			continue
		}

		// Throttle per user and dimension
		counterKey := "alert:" + eval.UserID + ":" + string(risk.Dimension)
		count, err := w.cache.IncrementCounter(ctx, tenantID, counterKey, w.alertWindow)
		if err != nil {
			slog.Error("alert counter failed",
				"user_id", eval.UserID,
				"dimension", risk.Dimension,
				"error", err,
			)
			continue
		}
		if count > w.maxAlerts {
			slog.Debug("alert throttled",
				"user_id", eval.UserID,
				"dimension", risk.Dimension,
				"count", count,
			)
			continue
		}

		alert := Alert{
			EvaluationID: eval.ID,
			TenantID:     tenantID,
			UserID:       eval.UserID,
			Month:        eval.Month,
			Dimension:    risk.Dimension,
			Severity:     risk.Severity,
			Summary:      risk.Summary,
		}

		payload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"user_id", eval.UserID,
				"dimension", risk.Dimension,
				"error", err,
			)
			continue
		}

		slog.Info("alert published",
			"evaluation_id", eval.ID,
			"user_id", eval.UserID,
			"dimension", risk.Dimension,
		)
	}

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
