package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/governstack/govern-trust/internal/metrics"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/notify"
)

// Recipients lists dispatch targets per channel.
type Recipients struct {
	Email []string
	SMS   []string
}

// Dispatcher routes alerts to configured recipients over independent
// channels. Email is attempted for every alert; SMS only for critical
// severity. A failure on one recipient or channel never blocks the others.
type Dispatcher struct {
	logger     *slog.Logger
	cooldowns  CooldownStore
	window     time.Duration
	mailer     notify.Mailer
	sms        notify.SMSSender
	recipients Recipients
	perCall    time.Duration
}

// NewDispatcher constructs a dispatcher. mailer and sms may be nil when the
// corresponding channel is unconfigured; missing SMS configuration is a
// silent no-op.
func NewDispatcher(logger *slog.Logger, cooldowns CooldownStore, window time.Duration, mailer notify.Mailer, sms notify.SMSSender, recipients Recipients) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cooldowns == nil {
		cooldowns = NewMemoryCooldownStore()
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Dispatcher{
		logger:     logger,
		cooldowns:  cooldowns,
		window:     window,
		mailer:     mailer,
		sms:        sms,
		recipients: recipients,
		perCall:    10 * time.Second,
	}
}

// Dispatch sends the alert unless its key is inside the cooldown window.
// The cooldown is committed only when at least one channel attempt succeeds;
// otherwise the claim is released so a later retry is not suppressed.
// Transport errors are captured per attempt and never returned as fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.Alert) models.DispatchResult {
	result := models.DispatchResult{Key: alert.Key}

	acquired, err := d.cooldowns.Acquire(ctx, alert.Key, d.window)
	if err != nil {
		// A broken cooldown backend must not silence alerting; proceed
		// as if the window were open.
		d.logger.Warn("cooldown acquire failed, dispatching anyway",
			slog.String("key", alert.Key), slog.Any("error", err))
		acquired = true
	}
	if !acquired {
		d.logger.Debug("alert suppressed by cooldown", slog.String("key", alert.Key))
		metrics.ObserveDispatch(metrics.DispatchSuppressed)
		result.Suppressed = true
		return result
	}

	result.Attempts = append(result.Attempts, d.sendEmails(ctx, alert)...)
	if alert.Severity == models.SeverityCritical {
		result.Attempts = append(result.Attempts, d.sendSMS(ctx, alert)...)
	}

	if result.Delivered() {
		now := time.Now().UTC()
		result.SentAt = &now
		metrics.ObserveDispatch(metrics.DispatchSent)
		return result
	}

	if err := d.cooldowns.Release(ctx, alert.Key); err != nil {
		d.logger.Warn("cooldown release failed", slog.String("key", alert.Key), slog.Any("error", err))
	}
	if len(result.Attempts) > 0 {
		metrics.ObserveDispatch(metrics.DispatchFailed)
		d.logger.Error("alert delivery failed on all channels", slog.String("key", alert.Key))
	}
	return result
}

func (d *Dispatcher) sendEmails(ctx context.Context, alert models.Alert) []models.ChannelAttempt {
	if d.mailer == nil || len(d.recipients.Email) == 0 {
		return nil
	}

	attempts := make([]models.ChannelAttempt, 0, len(d.recipients.Email))
	for _, to := range d.recipients.Email {
		callCtx, cancel := context.WithTimeout(ctx, d.perCall)
		err := d.mailer.Send(callCtx, to, alert.Subject, alert.Message)
		cancel()

		attempt := models.ChannelAttempt{Channel: models.ChannelEmail, Recipient: to, OK: err == nil}
		if err != nil {
			attempt.Error = err.Error()
			d.logger.Warn("email send failed",
				slog.String("key", alert.Key), slog.String("to", to), slog.Any("error", err))
		}
		attempts = append(attempts, attempt)
	}
	return attempts
}

func (d *Dispatcher) sendSMS(ctx context.Context, alert models.Alert) []models.ChannelAttempt {
	if d.sms == nil || len(d.recipients.SMS) == 0 {
		return nil
	}

	attempts := make([]models.ChannelAttempt, 0, len(d.recipients.SMS))
	for _, to := range d.recipients.SMS {
		callCtx, cancel := context.WithTimeout(ctx, d.perCall)
		err := d.sms.Send(callCtx, to, alert.Subject+": "+alert.Message)
		cancel()

		attempt := models.ChannelAttempt{Channel: models.ChannelSMS, Recipient: to, OK: err == nil}
		if err != nil {
			attempt.Error = err.Error()
			d.logger.Warn("sms send failed",
				slog.String("key", alert.Key), slog.String("to", to), slog.Any("error", err))
		}
		attempts = append(attempts, attempt)
	}
	return attempts
}
