package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Notification is one outbound alert message.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Notifier dispatches a single best-effort notification. No retry, no
// queueing, no delivery confirmation.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TrendAlert builds the operator notification for a trailing-window rise.
func TrendAlert(operator, chain string, pctChange, thresholdPct decimal.Decimal, window time.Duration) Notification {
	subject := fmt.Sprintf(
		"Alert: %s price increased by more than %s%% in the last %s",
		chain,
		thresholdPct.String(),
		formatWindow(window),
	)
	body := fmt.Sprintf(
		"%s rose %s%% over the trailing %s window (threshold %s%%).",
		chain,
		pctChange.StringFixed(2),
		formatWindow(window),
		thresholdPct.String(),
	)
	return Notification{To: operator, Subject: subject, Body: body}
}

// ThresholdAlert builds the subscriber notification for a crossed price level.
func ThresholdAlert(to, chain string, price decimal.Decimal) Notification {
	subject := fmt.Sprintf("Price alert: %s reached %s", chain, price.String())
	return Notification{To: to, Subject: subject, Body: subject}
}

func formatWindow(window time.Duration) string {
	if window == time.Hour {
		return "hour"
	}
	return window.String()
}
