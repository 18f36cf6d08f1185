package pipeline

import (
	"context"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// debounce applies the one-alert-per-episode rule against the persisted alert
// state. A state read failure skips evaluation for this cycle.
func (p *Pipeline) debounce(ctx context.Context, forecast domain.StormForecast) {
	active, err := p.alerts.AlertActive(ctx)
	if err != nil {
		p.logger.Error("read alert state, skipping alert evaluation", "error", err)
		return
	}

	notify, next := domain.EvaluateAlert(forecast.Incoming, p.settings.AlertsEnabled, active)

	if notify {
		p.logger.Warn("storm incoming", "trend", forecast.Trend, "samples", forecast.Samples)
		p.notify(ctx, domain.StormNotification())
	} else if forecast.Incoming && !active {
		p.logger.Info("storm incoming, alerts disabled", "trend", forecast.Trend)
	}

	if active && !next {
		p.logger.Info("storm signal cleared")
		p.cancel(ctx, domain.StormNotificationID)
	}

	if next != active {
		if err := p.alerts.SetAlertActive(ctx, next); err != nil {
			p.logger.Error("persist alert state", "error", err, "active", next)
		}
	}
}

func (p *Pipeline) notify(ctx context.Context, n domain.Notification) {
	if p.notifier == nil {
		p.logger.Debug("notifier disabled, dropping notification", "id", n.ID)
		return
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		p.logger.Error("send notification", "error", err, "id", n.ID)
		p.metrics.NotificationErrors.WithLabelValues("notify").Inc()
		return
	}
	p.metrics.AlertsSent.Inc()
}

func (p *Pipeline) cancel(ctx context.Context, id int) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Cancel(ctx, id); err != nil {
		p.logger.Error("cancel notification", "error", err, "id", id)
		p.metrics.NotificationErrors.WithLabelValues("cancel").Inc()
	}
}
