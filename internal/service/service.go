package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/alerting"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/config"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/fetcher"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/scheduler"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

var dec100 = decimal.NewFromInt(100)

// Service orchestrates the poll-evaluate-persist cycle.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.PriceFetcher
	prices    storage.PriceStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	chains         []string
	operatorEmail  string
	trendWindow    time.Duration
	trendThreshold decimal.Decimal
	alertsOn       bool
	locker         storage.AdvisoryLocker
	lockKey        int64
	now            func() time.Time
}

// New constructs the polling service. Nil stores or notifier disable the
// corresponding step rather than failing the cycle.
func New(cfg *config.Config, sched *scheduler.Scheduler, priceFetcher fetcher.PriceFetcher, prices storage.PriceStore, alerts storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := prices.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:      sched,
		fetcher:        priceFetcher,
		prices:         prices,
		alerts:         alerts,
		notifier:       notifier,
		logger:         logger.With().Str("component", "service").Logger(),
		chains:         cfg.ChainNames(),
		operatorEmail:  cfg.Alerting.OperatorEmail,
		trendWindow:    cfg.Alerting.TrendWindow,
		trendThreshold: decimal.NewFromFloat(cfg.Alerting.TrendThresholdPct),
		alertsOn:       cfg.Alerting.Enabled,
		locker:         locker,
		lockKey:        cfg.Scheduler.AdvisoryLockKey,
		now:            time.Now,
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes one cycle: every configured chain, sequentially. A
// failing chain is logged and the remaining chains still run.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	for _, chain := range s.chains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.ProcessChain(ctx, chain); err != nil {
			s.logger.Error().Err(err).Str("chain", chain).Time("tick", tick).Msg("chain cycle failed")
		}
	}
	return nil
}

// ProcessChain fetches and persists one chain's price, then runs both alert
// checks. The two checks are independent best-effort steps; their failures
// are logged and never abort the cycle.
func (s *Service) ProcessChain(ctx context.Context, chain string) error {
	price, err := s.fetcher.FetchPrice(ctx, chain)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}

	observedAt := s.now().UTC()

	if s.prices != nil {
		if _, err := s.prices.InsertPrice(ctx, chain, price, observedAt); err != nil {
			return fmt.Errorf("save price: %w", err)
		}
	}

	s.logger.Info().Str("chain", chain).Str("price_usd", price.String()).Msg("price recorded")

	s.checkTrend(ctx, chain, observedAt)
	s.checkThresholds(ctx, chain, price)

	return nil
}

// checkTrend evaluates the trailing-window percentage change and notifies the
// operator when it exceeds the threshold. It fires on every cycle where the
// condition holds; there is no debounce.
func (s *Service) checkTrend(ctx context.Context, chain string, now time.Time) {
	if !s.alertsOn || s.notifier == nil || s.prices == nil {
		return
	}

	windowStart := now.Add(-s.trendWindow)
	oldest, err := s.prices.EarliestPriceSince(ctx, chain, windowStart)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", chain).Msg("trend check: failed to load window start")
		return
	}
	latest, err := s.prices.LatestPrice(ctx, chain)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", chain).Msg("trend check: failed to load latest price")
		return
	}
	if oldest == nil || latest == nil {
		return
	}
	if oldest.Price.IsZero() {
		return
	}

	pctChange := latest.Price.Sub(oldest.Price).Div(oldest.Price).Mul(dec100)
	if !pctChange.GreaterThan(s.trendThreshold) {
		return
	}

	note := alerting.TrendAlert(s.operatorEmail, chain, pctChange, s.trendThreshold, s.trendWindow)
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("chain", chain).Msg("trend check: failed to dispatch alert")
		return
	}
	s.logger.Info().Str("chain", chain).Str("pct_change", pctChange.StringFixed(2)).Msg("trend alert dispatched")
}

// checkThresholds notifies every registered rule whose threshold is met by
// the observed price. Each rule is evaluated independently; a failed send
// does not stop the remaining rules.
func (s *Service) checkThresholds(ctx context.Context, chain string, price decimal.Decimal) {
	if !s.alertsOn || s.notifier == nil || s.alerts == nil {
		return
	}

	rules, err := s.alerts.ListAlertsByChain(ctx, chain)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", chain).Msg("threshold check: failed to load alert rules")
		return
	}

	for _, rule := range rules {
		if price.LessThan(rule.Threshold) {
			continue
		}
		note := alerting.ThresholdAlert(rule.Email, chain, price)
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("chain", chain).Int64("rule_id", rule.ID).Msg("threshold check: failed to dispatch alert")
			continue
		}
		s.logger.Info().Str("chain", chain).Int64("rule_id", rule.ID).Str("threshold", rule.Threshold.String()).Msg("threshold alert dispatched")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
