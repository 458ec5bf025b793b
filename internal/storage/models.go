package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one observed (chain, price) sample. Records are appended in
// real time and never mutated or backdated.
type PriceRecord struct {
	ID        int64
	Chain     string
	Price     decimal.Decimal
	Timestamp time.Time
}

// AlertRule is a user-registered threshold trigger. Rules are immutable; no
// update or delete operation exists.
type AlertRule struct {
	ID        int64
	Chain     string
	Threshold decimal.Decimal
	Email     string
	CreatedAt time.Time
}
