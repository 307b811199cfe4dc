// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/config"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
)

// Tunable is the part of a player a config reload can change at runtime.
type Tunable interface {
	SetThresholds(th buffer.Thresholds) error
}

// Worker is a background loop owned by the App. Run must return when ctx
// is done.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// simulation and snapshot loops) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	player       Tunable
	workers      []Worker
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder and player may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, player Tunable, workers ...Worker) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		player:       player,
		workers:      workers,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: a watcher failure does not stop the daemon.
	if a.cfgHolder != nil {
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case next := <-applyCh:
					a.apply(next)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	for _, w := range a.workers {
		g.Go(func() error {
			err := w.Run(ctx)
			if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
				err = nil
			}
			if err != nil {
				a.logger.Error().
					Err(err).
					Str("worker", w.Name).
					Str(log.FieldEvent, "worker.failed").
					Msg("worker failed")
			}
			return err
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// apply pushes a reloaded config into the running player and logger.
func (a *App) apply(next config.AppConfig) {
	log.Reconfigure(log.Config{Level: next.LogLevel, Version: next.Version})

	if a.player == nil {
		return
	}
	if err := a.player.SetThresholds(next.Player.Thresholds); err != nil {
		a.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "config.apply_failed").
			Msg("reloaded thresholds rejected")
		return
	}
	a.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Float64("poor_below", next.Player.Thresholds.PoorBelow).
		Float64("good_from", next.Player.Thresholds.GoodFrom).
		Msg("applied reloaded configuration")
}
