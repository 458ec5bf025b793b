package fetcher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedChain marks a chain outside the configured supported set.
	// It is returned before any network call is made.
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrQuoteUnavailable marks an upstream quote provider failure.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// PriceFetcher retrieves the current USD price for a supported chain's token.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, chain string) (decimal.Decimal, error)
}
