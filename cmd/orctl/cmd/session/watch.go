package session

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/cmd/orctl/internal/config"
	"github.com/EmOne/openremote/pkg/manager"
	"github.com/EmOne/openremote/pkg/telemetry"
)

var (
	metricsAddr string
	eventTypes  []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep a session alive and print its events",
	Long: `Boots a session and keeps it running until interrupted, printing lifecycle events
(online, offline, reconnecting) and any subscribed push events. Session metrics are
served in Prometheus format on --metrics-addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
			OTLPEndpoint:   gc.Config.Telemetry.OTLPEndpoint,
			OTLPInsecure:   gc.Config.Telemetry.OTLPInsecure,
			ServiceName:    "orctl",
			ServiceVersion: gc.Version,
			Environment:    gc.Config.Env,
		}, gc.Logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()

		m, err := gc.Provider.Manager(ctx)
		if err != nil {
			return err
		}

		addr := metricsAddr
		if addr == "" {
			addr = gc.Config.MetricsAddr
		}
		srv := &http.Server{Addr: addr, Handler: metricsRouter(gc.Provider.Registry())}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				gc.Logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		pterm.Info.Printf("Serving metrics on http://%s/metrics\n", addr)

		unsubscribe := m.Subscribe(func(e manager.Event) {
			printLifecycle(m, e)
		})
		defer unsubscribe()

		return pumpEvents(ctx, m)
	},
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func printLifecycle(m *manager.Manager, e manager.Event) {
	switch e {
	case manager.EventOnline:
		pterm.Success.Println("online")
	case manager.EventOffline:
		pterm.Warning.Println("offline")
	case manager.EventConnecting:
		pterm.Info.Println("connecting")
	case manager.EventError:
		pterm.Error.Printf("error: %s\n", m.Error())
	default:
		pterm.Info.Println(string(e))
	}
}

// pumpEvents prints push events until ctx ends. The channel is reopened whenever
// authentication toggles, so it is looked up again after each close.
func pumpEvents(ctx context.Context, m *manager.Manager) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		ch := m.Events()
		if ch == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				continue
			}
		}

		for _, eventType := range eventTypes {
			if _, err := ch.Subscribe(ctx, eventType, nil); err != nil {
				pterm.Warning.Printf("subscribe %s: %v\n", eventType, err)
			}
		}

	drain:
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-ch.Events():
				if !ok {
					break drain
				}
				pterm.Printf("%s %s\n", pterm.Cyan(ev.EventType), string(ev.Raw))
			case <-ticker.C:
				if m.Events() != ch {
					break drain
				}
			}
		}
	}
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the /metrics endpoint (env: OR_METRICS_ADDR)")
	watchCmd.Flags().StringSliceVar(&eventTypes, "subscribe", nil, "Push event types to subscribe to, e.g. attribute")
}
