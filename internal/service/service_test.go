package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/alerting"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/config"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Chains: map[string]string{
			"ethereum": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			"polygon":  "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		},
		Alerting: config.AlertingConfig{
			Enabled:           true,
			OperatorEmail:     "ops@example.com",
			TrendWindow:       time.Hour,
			TrendThresholdPct: 3,
		},
	}
}

// --- fakes ---

type fakeFetcher struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchPrice(ctx context.Context, chain string) (decimal.Decimal, error) {
	f.calls = append(f.calls, chain)
	if err, ok := f.errs[chain]; ok {
		return decimal.Decimal{}, err
	}
	price, ok := f.prices[chain]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no price for %s", chain)
	}
	return price, nil
}

type fakePriceStore struct {
	records   []storage.PriceRecord
	nextID    int64
	insertErr error
}

func (s *fakePriceStore) add(chain string, price string, ts time.Time) {
	s.nextID++
	s.records = append(s.records, storage.PriceRecord{
		ID:        s.nextID,
		Chain:     chain,
		Price:     decimal.RequireFromString(price),
		Timestamp: ts,
	})
}

func (s *fakePriceStore) InsertPrice(ctx context.Context, chain string, price decimal.Decimal, ts time.Time) (storage.PriceRecord, error) {
	if s.insertErr != nil {
		return storage.PriceRecord{}, s.insertErr
	}
	s.nextID++
	rec := storage.PriceRecord{ID: s.nextID, Chain: chain, Price: price, Timestamp: ts}
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakePriceStore) EarliestPriceSince(ctx context.Context, chain string, since time.Time) (*storage.PriceRecord, error) {
	var found *storage.PriceRecord
	for i := range s.records {
		rec := s.records[i]
		if rec.Chain != chain || rec.Timestamp.Before(since) {
			continue
		}
		if found == nil || rec.Timestamp.Before(found.Timestamp) ||
			(rec.Timestamp.Equal(found.Timestamp) && rec.ID < found.ID) {
			found = &s.records[i]
		}
	}
	return found, nil
}

func (s *fakePriceStore) LatestPrice(ctx context.Context, chain string) (*storage.PriceRecord, error) {
	var found *storage.PriceRecord
	for i := range s.records {
		rec := s.records[i]
		if rec.Chain != chain {
			continue
		}
		if found == nil || rec.Timestamp.After(found.Timestamp) ||
			(rec.Timestamp.Equal(found.Timestamp) && rec.ID > found.ID) {
			found = &s.records[i]
		}
	}
	return found, nil
}

func (s *fakePriceStore) ListPricesSince(ctx context.Context, since time.Time) ([]storage.PriceRecord, error) {
	return nil, nil
}

func (s *fakePriceStore) ListPricesBetween(ctx context.Context, chain string, from, to time.Time) ([]storage.PriceRecord, error) {
	return nil, nil
}

func (s *fakePriceStore) ListRecentPrices(ctx context.Context, limit int) ([]storage.PriceRecord, error) {
	return nil, nil
}

type fakeAlertStore struct {
	rules []storage.AlertRule
}

func (s *fakeAlertStore) CreateAlert(ctx context.Context, chain string, threshold decimal.Decimal, email string) (storage.AlertRule, error) {
	rule := storage.AlertRule{ID: int64(len(s.rules) + 1), Chain: chain, Threshold: threshold, Email: email}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *fakeAlertStore) ListAlertsByChain(ctx context.Context, chain string) ([]storage.AlertRule, error) {
	var out []storage.AlertRule
	for _, rule := range s.rules {
		if rule.Chain == chain {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *fakeAlertStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRule, error) {
	return s.rules, nil
}

type recordingNotifier struct {
	sent    []alerting.Notification
	failFor map[string]bool
}

func (n *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	if n.failFor[note.To] {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, note)
	return nil
}

func newTestService(f *fakeFetcher, prices *fakePriceStore, alerts *fakeAlertStore, notifier *recordingNotifier, now time.Time) *Service {
	svc := New(testConfig(), nil, f, prices, alerts, notifier, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

// --- tests ---

func TestTrendCheckFiresAboveThreshold(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	prices := &fakePriceStore{}
	prices.add("ethereum", "100", now.Add(-61*time.Minute))
	prices.add("ethereum", "100", now.Add(-59*time.Minute))

	f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.RequireFromString("104")}}
	notifier := &recordingNotifier{}
	svc := newTestService(f, prices, &fakeAlertStore{}, notifier, now)

	if err := svc.ProcessChain(context.Background(), "ethereum"); err != nil {
		t.Fatalf("ProcessChain: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one trend alert, got %d", len(notifier.sent))
	}
	if notifier.sent[0].To != "ops@example.com" {
		t.Fatalf("trend alert should go to the operator, got %q", notifier.sent[0].To)
	}
}

func TestTrendCheckQuietBelowThreshold(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	prices := &fakePriceStore{}
	prices.add("ethereum", "100", now.Add(-61*time.Minute))

	f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.RequireFromString("102")}}
	notifier := &recordingNotifier{}
	svc := newTestService(f, prices, &fakeAlertStore{}, notifier, now)

	if err := svc.ProcessChain(context.Background(), "ethereum"); err != nil {
		t.Fatalf("ProcessChain: %v", err)
	}

	if len(notifier.sent) != 0 {
		t.Fatalf("2%% change must not alert, got %d notifications", len(notifier.sent))
	}
}

func TestTrendCheckSkipsWithoutWindowHistory(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// Only record in the window will be the one this cycle saves.
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.RequireFromString("104")}}
	notifier := &recordingNotifier{}
	svc := newTestService(f, &fakePriceStore{}, &fakeAlertStore{}, notifier, now)

	if err := svc.ProcessChain(context.Background(), "ethereum"); err != nil {
		t.Fatalf("ProcessChain: %v", err)
	}

	// Earliest and latest are the same just-saved record: zero change.
	if len(notifier.sent) != 0 {
		t.Fatalf("single-point window must not alert, got %d notifications", len(notifier.sent))
	}
}

func TestThresholdCheckBoundary(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{rules: []storage.AlertRule{
		{ID: 1, Chain: "ethereum", Threshold: decimal.NewFromInt(50), Email: "a@b.com"},
	}}

	for _, tc := range []struct {
		price string
		fires bool
	}{
		{"50", true},
		{"49.99", false},
		{"51", true},
	} {
		f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.RequireFromString(tc.price)}}
		notifier := &recordingNotifier{}
		svc := newTestService(f, &fakePriceStore{}, alerts, notifier, now)

		if err := svc.ProcessChain(context.Background(), "ethereum"); err != nil {
			t.Fatalf("price %s: ProcessChain: %v", tc.price, err)
		}

		fired := len(notifier.sent) == 1
		if fired != tc.fires {
			t.Fatalf("price %s: fired=%v, want %v", tc.price, fired, tc.fires)
		}
		if fired && notifier.sent[0].To != "a@b.com" {
			t.Fatalf("price %s: alert went to %q", tc.price, notifier.sent[0].To)
		}
	}
}

func TestThresholdCheckSurvivesNotifyFailure(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{rules: []storage.AlertRule{
		{ID: 1, Chain: "ethereum", Threshold: decimal.NewFromInt(10), Email: "broken@example.com"},
		{ID: 2, Chain: "ethereum", Threshold: decimal.NewFromInt(20), Email: "works@example.com"},
	}}

	f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(100)}}
	notifier := &recordingNotifier{failFor: map[string]bool{"broken@example.com": true}}
	svc := newTestService(f, &fakePriceStore{}, alerts, notifier, now)

	if err := svc.ProcessChain(context.Background(), "ethereum"); err != nil {
		t.Fatalf("ProcessChain: %v", err)
	}

	if len(notifier.sent) != 1 || notifier.sent[0].To != "works@example.com" {
		t.Fatalf("remaining rules must still be evaluated, sent=%v", notifier.sent)
	}
}

func TestTickContinuesAfterFetchFailure(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	f := &fakeFetcher{
		prices: map[string]decimal.Decimal{"polygon": decimal.RequireFromString("0.75")},
		errs:   map[string]error{"ethereum": errors.New("provider down")},
	}
	prices := &fakePriceStore{}
	svc := newTestService(f, prices, &fakeAlertStore{}, &recordingNotifier{}, now)

	if err := svc.ProcessTick(context.Background(), now); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}

	if len(f.calls) != 2 {
		t.Fatalf("both chains should be attempted, got %v", f.calls)
	}
	if len(prices.records) != 1 || prices.records[0].Chain != "polygon" {
		t.Fatalf("polygon should still be recorded, records=%v", prices.records)
	}
}

func TestChainsProcessedInOrder(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	f := &fakeFetcher{prices: map[string]decimal.Decimal{
		"ethereum": decimal.NewFromInt(1),
		"polygon":  decimal.NewFromInt(1),
	}}
	svc := newTestService(f, &fakePriceStore{}, &fakeAlertStore{}, &recordingNotifier{}, now)

	if err := svc.ProcessTick(context.Background(), now); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}

	if len(f.calls) != 2 || f.calls[0] != "ethereum" || f.calls[1] != "polygon" {
		t.Fatalf("expected sequential ethereum,polygon, got %v", f.calls)
	}
}

func TestSaveFailureAbortsChainIteration(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{rules: []storage.AlertRule{
		{ID: 1, Chain: "ethereum", Threshold: decimal.NewFromInt(1), Email: "a@b.com"},
	}}
	prices := &fakePriceStore{insertErr: errors.New("storage unavailable")}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(100)}}
	notifier := &recordingNotifier{}
	svc := newTestService(f, prices, alerts, notifier, now)

	if err := svc.ProcessChain(context.Background(), "ethereum"); err == nil {
		t.Fatal("save failure should surface an error")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("evaluation must not run after a failed save, sent=%v", notifier.sent)
	}
}
