package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

// Show prints recent price records, or registered alert rules with
// opts.Alerts set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}
	return a.showPrices(ctx, store, opts.Limit)
}

func (a *App) showPrices(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.ListRecentPrices(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no price records found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tChain\tPrice (USD)\tTime (UTC)")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\n",
			rec.ID,
			rec.Chain,
			rec.Price.StringFixed(4),
			rec.Timestamp.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store *storage.Store, limit int) error {
	rules, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(os.Stdout, "no alert rules found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tChain\tThreshold (USD)\tEmail\tCreated (UTC)")

	for _, rule := range rules {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\n",
			rule.ID,
			rule.Chain,
			rule.Threshold.StringFixed(4),
			rule.Email,
			rule.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}
