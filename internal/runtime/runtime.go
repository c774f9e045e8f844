// Package runtime boots the enabled modality services and the shared
// infrastructure they ride on, then tears everything down in reverse
// order when the context is cancelled. One daemon can host any subset
// of the services; each enabled service gets its own listener.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaanilabs/vaani/internal/artifact"
	"github.com/vaanilabs/vaani/internal/asr"
	"github.com/vaanilabs/vaani/internal/bus"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/gateway"
	"github.com/vaanilabs/vaani/internal/language"
	"github.com/vaanilabs/vaani/internal/natsserver"
	"github.com/vaanilabs/vaani/internal/presence"
	"github.com/vaanilabs/vaani/internal/protocol"
	"github.com/vaanilabs/vaani/internal/translate"
	"github.com/vaanilabs/vaani/internal/tts"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	servers     []*http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start boots telemetry, the bus, the artifact store, and every enabled
// service, then blocks until ctx is cancelled. Backend tiers are bound
// once here; a service whose real backends are all unavailable still
// comes up on its stand-in.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	// The embedded broker must be listening before anything dials the
	// bus, itself included.
	var busClient *bus.Client
	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		busCfg := r.cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{embedded.ClientURL()}
		}
		busClient, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			embedded.Shutdown()
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
	}

	var store *artifact.Store
	if r.cfg.TTS.Enabled {
		store, err = artifact.Open(ctx, r.cfg.Artifacts, r.logger)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
	}

	sessions := gateway.NewSessions(r.logger)
	var backends []presence.Backend

	if r.cfg.ASR.Enabled {
		svc := asr.NewService(r.cfg.ASR, asr.Bind(ctx, r.cfg.ASR, r.logger), r.logger)
		backends = append(backends, presence.Backend{
			Service:   string(protocol.ServiceASR),
			Tier:      svc.Tier(),
			Languages: language.Supported(),
		})
		r.addServer(r.cfg.ASR.Bind, r.cfg.ASR.Port, r.asrMux(svc, sessions, busClient))
	}
	if r.cfg.Translator.Enabled {
		svc := translate.NewService(r.cfg.Translator, translate.Bind(ctx, r.cfg.Translator, r.logger), r.logger)
		backends = append(backends, presence.Backend{
			Service:   string(protocol.ServiceTranslator),
			Tier:      svc.Tier(),
			Mode:      svc.Mode(),
			Languages: language.Supported(),
		})
		r.addServer(r.cfg.Translator.Bind, r.cfg.Translator.Port, r.translatorMux(svc, sessions, busClient))
	}
	if r.cfg.TTS.Enabled {
		svc := tts.NewService(r.cfg.TTS, store, r.logger)
		backends = append(backends, presence.Backend{
			Service:   string(protocol.ServiceTTS),
			Tier:      svc.Tiers()[0],
			Languages: language.Supported(),
		})
		r.addServer(r.cfg.TTS.Bind, r.cfg.TTS.Port, r.ttsMux(svc, store, sessions, busClient))
	}

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.servers = append(r.servers, &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, srv := range r.servers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("http server failed",
					slog.String("addr", srv.Addr),
					slog.String("error", err.Error()))
			}
		}()
	}

	// Presence announces last so peers only learn about endpoints that
	// are already listening. A broken registry degrades visibility, not
	// service.
	var registry *presence.Registry
	if r.cfg.Presence.Enabled && busClient != nil {
		registry, err = presence.NewRegistry(ctx, r.cfg.Presence, busClient, backends, r.logger)
		if err != nil {
			r.logger.Warn("presence registry unavailable", slog.String("error", err.Error()))
		}
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.Bool("asr", r.cfg.ASR.Enabled),
		slog.Bool("translator", r.cfg.Translator.Enabled),
		slog.Bool("tts", r.cfg.TTS.Enabled),
		slog.Bool("bus", busClient != nil))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	for _, srv := range r.servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error",
				slog.String("addr", srv.Addr),
				slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if registry != nil {
		registry.Close()
	}
	if busClient != nil {
		busClient.Close()
	}
	embedded.Shutdown()
	if store != nil {
		if err := store.Close(); err != nil {
			r.logger.Error("artifact store close error", slog.String("error", err.Error()))
		}
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) addServer(bind string, port int, handler http.Handler) {
	r.servers = append(r.servers, &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
