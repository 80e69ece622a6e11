// Package notify implements the cooldown-aware notification router
// (§4.6): it consumes events from the discovery and position schedulers,
// applies per-(user, kind, subject) cooldowns via the notification
// ledger, formats messages, and delivers them through a ChatGateway with
// retry and rate limiting.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/errs"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/obs/metrics"
	"github.com/lendwatch/monitor/internal/store"
)

// permanentCooldown is used for subjects that should only ever fire once
// per (user, subject), ever — the ProtocolLaunchOnChain broadcast.
const permanentCooldown = 100 * 365 * 24 * time.Hour

const deliverMaxAttempts = 3

// Router dispatches formatted notifications, honoring cooldowns and
// delivery retries.
type Router struct {
	store   store.Store
	gateway ChatGateway
	log     *zap.Logger
	limiter *rate.Limiter

	alertMatchCooldown time.Duration
	apyChangeCooldown  time.Duration
}

// New builds a Router. The rate limiter paces outbound sends to avoid
// bursting the gateway, grounded on the pack's defi-yield-aggregator
// DeFiLlama client's use of golang.org/x/time/rate for the same purpose.
func New(st store.Store, gw ChatGateway, cfg *config.Config, log *zap.Logger) *Router {
	return &Router{
		store:              st,
		gateway:            gw,
		log:                log,
		limiter:            rate.NewLimiter(rate.Limit(5), 10),
		alertMatchCooldown: cfg.AlertMatchCooldown,
		apyChangeCooldown:  cfg.APYChangeCooldown,
	}
}

// HandlePoolAnnouncement implements the PoolAnnouncement routing rule:
// every matching signed alert gets one alert_match message, cooldown 24h
// per (user, pool, chain).
func (r *Router) HandlePoolAnnouncement(ctx context.Context, ev events.PoolAnnouncement) error {
	alerts, err := r.store.GetActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("get active alerts: %w", err)
	}

	subject := fmt.Sprintf("pool:%s:%d", ev.Pool.Key.Address, ev.Pool.Key.Chain)
	for _, a := range alerts {
		if !a.Matches(ev.Pool.UnderlyingSymbol, ev.Pool.APY) {
			continue
		}
		msg, actions := formatAlertMatch(ev.Pool)
		r.dispatch(ctx, a.UserID, a.User.ChannelID, store.KindAlertMatch, subject, msg, actions, r.alertMatchCooldown)
	}
	return nil
}

// HandleProtocolLaunch implements the ProtocolLaunchOnChain rule: a
// one-shot broadcast to every user, cooldown permanent (once per chain
// per user, ever).
func (r *Router) HandleProtocolLaunch(ctx context.Context, ev events.ProtocolLaunchOnChain) error {
	users, err := r.store.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("get all users: %w", err)
	}

	subject := fmt.Sprintf("chain:%d", ev.Chain)
	msg := formatProtocolLaunch(ev.Chain)
	for _, u := range users {
		r.dispatch(ctx, u.ID, u.ChannelID, store.KindPoolAnnouncement, subject, msg, nil, permanentCooldown)
	}
	return nil
}

// HandleDepositObserved implements §4.7's supplemented feature: same
// matching predicate and cooldown stream as PoolAnnouncement, keyed to
// the specific position rather than the pool.
func (r *Router) HandleDepositObserved(ctx context.Context, ev events.DepositObserved) error {
	alerts, err := r.store.GetActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("get active alerts: %w", err)
	}

	subject := fmt.Sprintf("position:%d", ev.Position.ID)
	for _, a := range alerts {
		if a.UserID != ev.Position.UserID {
			continue
		}
		if !a.Matches(ev.Pool.UnderlyingSymbol, ev.Pool.APY) {
			continue
		}
		msg, actions := formatAlertMatch(ev.Pool)
		r.dispatch(ctx, a.UserID, a.User.ChannelID, store.KindAlertMatch, subject, msg, actions, r.alertMatchCooldown)
	}
	return nil
}

// HandleAPYChange implements the APYChange routing rule: one message to
// the position's owner, cooldown 6h default (same cooldown regardless of
// major/minor, different formatting only).
func (r *Router) HandleAPYChange(ctx context.Context, ev events.APYChange) error {
	user, err := r.store.GetUserByID(ctx, ev.Position.UserID)
	if err != nil {
		return fmt.Errorf("get user by id: %w", err)
	}
	poolName := ev.Position.Key.Address
	if pool, err := r.store.GetPool(ctx, ev.Position.Key); err == nil {
		poolName = pool.Name
	} else {
		r.log.Warn("pool lookup for apy change message failed, falling back to address", zap.Error(err))
	}
	subject := fmt.Sprintf("position:%d", ev.Position.ID)
	msg := formatAPYChange(poolName, ev.Position.Key.Chain, ev.Old, ev.New, ev.Major)
	r.dispatch(ctx, user.ID, user.ChannelID, store.KindAPYChange, subject, msg, nil, r.apyChangeCooldown)
	return nil
}

// HandlePositionClosed implements the PositionClosed routing rule: no
// cooldown; it fires at most once because the position becomes inactive.
func (r *Router) HandlePositionClosed(ctx context.Context, ev events.PositionClosed) error {
	user, err := r.store.GetUserByID(ctx, ev.Position.UserID)
	if err != nil {
		return fmt.Errorf("get user by id: %w", err)
	}
	subject := fmt.Sprintf("position:%d", ev.Position.ID)
	msg := formatPositionClosed(ev.Position)
	r.dispatch(ctx, user.ID, user.ChannelID, store.KindPositionClosed, subject, msg, nil, 0)
	return nil
}

// dispatch runs the cooldown check, delivery, and ledger recording for a
// single (user, kind, subject) notification. Errors are logged, not
// returned, so one failed delivery never blocks the rest of a tick's
// events.
func (r *Router) dispatch(ctx context.Context, userID int64, channelID string, kind store.NotificationKind, subject, message string, actions []Action, cooldown time.Duration) {
	unreachable, err := r.store.IsChannelUnreachable(ctx, channelID)
	if err != nil {
		r.log.Warn("check channel unreachable", zap.Error(err))
		return
	}
	if unreachable {
		metrics.NotificationsDropped.WithLabelValues(string(kind), "unreachable").Inc()
		return
	}

	if cooldown > 0 {
		hit, err := r.store.WasNotifiedAbout(ctx, userID, kind, subject, cooldown)
		if err != nil {
			r.log.Warn("cooldown check failed", zap.Error(err))
			return
		}
		if hit {
			metrics.NotificationsDropped.WithLabelValues(string(kind), "cooldown").Inc()
			return
		}
	}

	delivered, deliverErr := r.deliverWithRetry(ctx, channelID, message, actions)
	if deliverErr != nil && !delivered {
		if errs.Is(deliverErr, errs.KindDeliverPermanent) {
			if err := r.store.MarkChannelUnreachable(ctx, channelID); err != nil {
				r.log.Warn("mark channel unreachable failed", zap.Error(err))
			}
		}
		metrics.NotificationsDropped.WithLabelValues(string(kind), "delivery_failed").Inc()
	}

	record := store.NotificationRecord{
		UserID:    userID,
		Kind:      kind,
		Subject:   subject,
		Payload:   message,
		Delivered: delivered,
	}
	if err := r.store.RecordNotification(ctx, record); err != nil {
		r.log.Warn("record notification failed", zap.Error(err))
		return
	}
	if delivered {
		metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	}
}

// deliverWithRetry makes up to deliverMaxAttempts send attempts in total,
// retrying transient failures with expo backoff from 1s, per §4.6's state
// machine.
func (r *Router) deliverWithRetry(ctx context.Context, channelID, message string, actions []Action) (bool, error) {
	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= deliverMaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return false, err
		}
		err := r.gateway.Send(ctx, channelID, message, actions)
		if err == nil {
			return true, nil
		}
		lastErr = errs.New(errs.KindDeliverTransient, 0, err)
		var permanent *PermanentDeliveryError
		if errors.As(err, &permanent) {
			return false, errs.New(errs.KindDeliverPermanent, 0, permanent.Err)
		}
		if attempt == deliverMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return false, lastErr
}
