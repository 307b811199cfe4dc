// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/api"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/config"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/health"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/host/sim"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/player"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/resume"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/statefile"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/telemetry"
)

const (
	serviceName = "lionplayer"

	apiRateLimit  = 300
	apiRateWindow = time.Minute

	storePingTimeout = 2 * time.Second
)

// Snapshot is the document periodically written to the snapshot path.
type Snapshot struct {
	PlayerID   string            `json:"player_id"`
	MediaID    string            `json:"media_id"`
	State      playback.State    `json:"state"`
	Thresholds buffer.Thresholds `json:"thresholds"`
	WrittenAt  time.Time         `json:"written_at"`
}

// Runtime is the assembled daemon.
type Runtime struct {
	App    *App
	Player *player.Player
	Host   *sim.Host
	Health *health.Manager
}

// Build wires telemetry, the resume store, the simulated host, the player,
// health checks and the HTTP API from the current config of holder, and
// starts the player. The returned App runs everything else.
func Build(ctx context.Context, holder *config.Holder) (_ *Runtime, err error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	var cleanup []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i].hook(context.WithoutCancel(ctx))
		}
	}()

	store, err := resume.NewStore(resume.Options{
		Backend: cfg.Resume.Backend,
		Dir:     cfg.DataDir,
		Redis:   cfg.Resume.Redis,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open resume store: %w", err)
	}
	cleanup = append(cleanup, namedHook{"resume_store", func(context.Context) error {
		return store.Close()
	}})

	bandwidth, err := config.ParseBandwidthProfile(cfg.Sim.Bandwidth)
	if err != nil {
		return nil, err
	}
	host := sim.New(sim.Config{
		Duration:      cfg.Sim.Duration,
		Bitrate:       cfg.Sim.Bitrate,
		Bandwidth:     bandwidth,
		BandwidthStep: cfg.Sim.BandwidthStep,
		Autoplay:      cfg.Sim.Autoplay,
	})

	p := player.New(host, player.Options{
		MediaID:      cfg.Sim.MediaID,
		Thresholds:   cfg.Player.Thresholds,
		SegmentCount: cfg.Player.Segments,
		TickInterval: cfg.Player.TickInterval,
		Store:        store,
		Resume: resume.TrackerConfig{
			Profile:      cfg.Resume.Profile,
			SaveInterval: cfg.Resume.SaveInterval,
		},
	})
	cleanup = append(cleanup, namedHook{"player", func(context.Context) error {
		p.Close()
		return nil
	}})

	// Spans start once the player does, so the provider can be built from
	// its identity. The hook goes first so it runs after the player closes.
	tracingService := ""
	if cfg.Tracing.Enabled {
		provider, perr := telemetry.NewProvider(ctx, telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: cfg.Version,
			PlayerID:       p.ID(),
			MediaID:        p.MediaID,
			Exporter:       cfg.Tracing.Exporter,
			Endpoint:       cfg.Tracing.Endpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
		})
		if perr != nil {
			// Tracing is optional; the daemon keeps running without spans.
			logger.Warn().Err(perr).Msg("Telemetry initialization failed, continuing without tracing")
		} else {
			tracingService = serviceName
			cleanup = append([]namedHook{{"telemetry", provider.Shutdown}}, cleanup...)
			logger.Info().
				Str(log.FieldPlayerID, p.ID()).
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sampling_rate", cfg.Tracing.SamplingRate).
				Msg("Telemetry initialized")
		}
	}

	hm := health.NewManager(cfg.Version, p)
	if ping := storePing(store); ping != nil {
		hm.RegisterChecker(health.NewPingChecker("resume_store", storePingTimeout, ping))
	}
	if cfg.Snapshot.Path != "" {
		hm.RegisterChecker(health.NewFileChecker("snapshot", cfg.Snapshot.Path, 3*cfg.Snapshot.Interval))
	}

	srv := api.New(p, host, hm, api.Config{
		RateLimit:      apiRateLimit,
		RateWindow:     apiRateWindow,
		TracingService: tracingService,
	})

	mgr, err := NewManager(DefaultServerConfig(cfg.Listen), Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
	})
	if err != nil {
		return nil, err
	}
	for _, h := range cleanup {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}

	workers := []Worker{{
		Name: "sim",
		Run:  func(ctx context.Context) error { return host.Run(ctx, cfg.Sim.Step) },
	}}
	if cfg.Snapshot.Path != "" {
		w := &statefile.Writer{
			Path:     cfg.Snapshot.Path,
			Interval: cfg.Snapshot.Interval,
			Snapshot: func() any {
				return Snapshot{
					PlayerID:   p.ID(),
					MediaID:    p.MediaID(),
					State:      p.State(),
					Thresholds: p.Thresholds(),
					WrittenAt:  time.Now().UTC(),
				}
			},
		}
		workers = append(workers, Worker{Name: "snapshot", Run: w.Run})
	}

	p.Start()
	host.Load()

	logger.Info().
		Str(log.FieldPlayerID, p.ID()).
		Str(log.FieldMediaID, p.MediaID()).
		Str("resume_backend", cfg.Resume.Backend).
		Msg("player started")

	return &Runtime{
		App:    NewApp(logger, mgr, holder, p, workers...),
		Player: p,
		Host:   host,
		Health: hm,
	}, nil
}

// storePing returns the connectivity probe of stores that have one.
func storePing(store resume.Store) func(context.Context) error {
	switch s := store.(type) {
	case interface{ Verify(context.Context) error }:
		return s.Verify
	case interface{ HealthCheck(context.Context) error }:
		return s.HealthCheck
	}
	return nil
}

// Run builds the daemon and runs it until ctx is cancelled.
func Run(ctx context.Context, holder *config.Holder) error {
	rt, err := Build(ctx, holder)
	if err != nil {
		return err
	}
	if err := rt.App.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
