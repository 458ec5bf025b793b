package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/alerting"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/api"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/config"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/fetcher"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/scheduler"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/service"
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PriceFetcher {
	return fetcher.NewMoralis(fetcher.MoralisOptions{
		BaseURL:        a.Config.Moralis.BaseURL,
		APIKey:         a.Config.Moralis.APIKey,
		TokenAddresses: a.Config.Chains,
		Timeout:        a.Config.Moralis.RequestTimeout,
		UserAgent:      a.Config.Moralis.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil
	}
	return alerting.NewEmailNotifier(alerting.EmailOptions{
		Host:     a.Config.Email.Host,
		Port:     a.Config.Email.Port,
		Username: a.Config.Email.Username,
		Password: a.Config.Email.Password,
		From:     a.Config.Email.From,
		Timeout:  a.Config.Email.RequestTimeout,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running polling service and the HTTP API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence and http api disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	priceFetcher := a.newFetcher()
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		a.Logger.Warn().Msg("alerting disabled; no notifications will be sent")
	}

	var prices storage.PriceStore
	var alerts storage.AlertStore
	if store != nil {
		prices = store
		alerts = store
	}

	svc := service.New(a.Config, sched, priceFetcher, prices, alerts, notifier, a.Logger)

	if store != nil && a.Config.API.ListenAddr != "" {
		srv := api.NewServer(api.Options{
			ListenAddr:   a.Config.API.ListenAddr,
			ReadTimeout:  a.Config.API.ReadTimeout,
			WriteTimeout: a.Config.API.WriteTimeout,
		}, prices, alerts, a.Logger)

		go func() {
			if err := srv.Start(); err != nil {
				a.Logger.Error().Err(err).Msg("http api terminated")
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error().Err(err).Msg("http api shutdown failed")
			}
		}()
	}

	a.Logger.Info().Msg("starting price tracking service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price tracking service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Chain     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}
