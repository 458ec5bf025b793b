package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/alerting"
)

// SimulateAlert dispatches a synthetic trend alert through the configured
// email transport. Useful as an end-to-end SMTP smoke test.
func (a *App) SimulateAlert(ctx context.Context, chain string, pctChange float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no notifier configured")
	}

	note := alerting.TrendAlert(
		a.Config.Alerting.OperatorEmail,
		chain,
		decimal.NewFromFloat(pctChange),
		decimal.NewFromFloat(a.Config.Alerting.TrendThresholdPct),
		a.Config.Alerting.TrendWindow,
	)
	return notifier.Notify(ctx, note)
}
