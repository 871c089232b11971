package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"vibe-mind/internal/api"
	"vibe-mind/internal/handlers"
	"vibe-mind/internal/mediagroup"
	"vibe-mind/internal/session"
	"vibe-mind/internal/telegram"
)

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Hour
)

// Handler builds the HTTP API over the app's pipeline and storage.
func (a *App) Handler() http.Handler {
	return api.New(api.Options{
		Pipeline:         a.Pipeline,
		Profiles:         a.Profiles,
		Platforms:        a.Platforms,
		Files:            a.Files,
		Index:            a.Index,
		VisionConfigured: a.Model != nil,
		RequestTimeout:   a.Config.RequestTimeout,
		Logger:           a.Logger,
	}).Routes()
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.Config.WebAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.WatchConfigs(gctx); err != nil {
			a.Logger.Error("config watch stopped", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		a.Logger.Info("web started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// RunBot long-polls Telegram and dispatches updates until ctx is done.
func (a *App) RunBot(ctx context.Context) error {
	cfg := a.Config
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: a.HTTPClient,
		Logger:     a.Logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		return err
	}

	sessions := session.NewStore(session.Options{
		Defaults: session.Selection{
			ProfileKey:  "product_designer",
			PlatformKey: "v0",
			Mode:        "prompt",
		},
	})

	handler := handlers.New(handlers.Options{
		Telegram:  tg,
		Pipeline:  a.Pipeline,
		Profiles:  a.Profiles,
		Platforms: a.Platforms,
		Sessions:  sessions,
		Files:     a.Files,
		Index:     a.Index,
		Logger:    a.Logger,
	})
	if err := handler.Validate(); err != nil {
		return err
	}

	go func() {
		if err := a.WatchConfigs(ctx); err != nil {
			a.Logger.Error("config watch stopped", "err", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Prune(); n > 0 {
					a.Logger.Info("sessions pruned", "count", n)
				}
			}
		}
	}()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
	})
	defer aggregator.Close()
	handler.SetMediaGroupAggregator(aggregator)

	a.Logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info("shutting down")
			return nil
		case update, ok := <-updates:
			if !ok {
				a.Logger.Info("updates channel closed")
				return nil
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					a.Logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}
