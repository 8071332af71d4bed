// Package router implements the router runtime (C5): it binds a
// transport.Transport, runs the receive-dispatch-send loop and the
// liveness prune sweep, and serves the HTTP status surface. Grounded on
// code/cellorg/internal/broker/service.go's Start/handleConnection accept
// loop, generalized from per-connection JSON-RPC handling to the single
// shared receive loop a Transport.Accept already multiplexes.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/NadimGhaznavi/hydra-router/internal/dispatch"
	"github.com/NadimGhaznavi/hydra-router/internal/envelope"
	"github.com/NadimGhaznavi/hydra-router/internal/metrics"
	"github.com/NadimGhaznavi/hydra-router/internal/registry"
	"github.com/NadimGhaznavi/hydra-router/internal/transport"
)

// Service is the running router: transport, registry, dispatcher, and the
// loops that tie them together.
type Service struct {
	tr   transport.Transport
	reg  *registry.Registry
	disp *dispatch.Dispatcher
	met  *metrics.Metrics
	log  *zap.SugaredLogger

	deadAfter     time.Duration
	pruneInterval time.Duration

	httpAddr string
	httpSrv  *http.Server
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithMetrics wires a metrics.Metrics instance, registering its dispatch
// rule hit hook and feeding its registry size gauge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.met = m }
}

// WithHTTPStatus enables the HTTP status surface on addr (spec §6.1). An
// empty addr disables it.
func WithHTTPStatus(addr string) Option {
	return func(s *Service) { s.httpAddr = addr }
}

// New constructs a Service bound to tr, with peers considered dead after
// deadAfter and pruned every pruneInterval.
func New(tr transport.Transport, log *zap.SugaredLogger, deadAfter, pruneInterval time.Duration, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	reg := registry.New(log)
	disp := dispatch.New(reg, log)

	s := &Service{
		tr:            tr,
		reg:           reg,
		disp:          disp,
		log:           log,
		deadAfter:     deadAfter,
		pruneInterval: pruneInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.met != nil {
		disp.SetRuleHitHook(s.met.RuleHitHook())
		reg.SetSizeGauge(func(n int) { s.met.RegistrySize.Set(float64(n)) })
	}
	return s
}

// Registry exposes the underlying peer registry, mainly for tests and the
// HTTP status surface.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Run starts the transport, the receive loop, the prune loop, and — if
// configured — the HTTP status surface. Run blocks until ctx is done or an
// unrecoverable transport error occurs.
func (s *Service) Run(ctx context.Context) error {
	if err := s.tr.Listen(ctx); err != nil {
		return err
	}

	if s.httpAddr != "" {
		s.startHTTP(ctx)
	}

	pruneTicker := time.NewTicker(s.pruneInterval)
	defer pruneTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pruneTicker.C:
				removed := s.reg.Prune(s.deadAfter)
				if s.met != nil {
					s.met.PruneSweeps.Inc()
					if len(removed) > 0 {
						s.met.PrunedPeers.Add(float64(len(removed)))
					}
				}
				if len(removed) > 0 {
					s.log.Infow("router: pruned dead peers", "identities", removed)
				}
			}
		}
	}()

	for {
		frame, err := s.tr.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			s.log.Warnw("router: accept error", "error", err)
			continue
		}
		s.handleFrame(frame)
	}
}

func (s *Service) handleFrame(frame transport.Frame) {
	wire, err := envelope.ParseAndValidate(frame.Payload)
	if err != nil {
		if s.met != nil {
			s.met.EnvelopesRejected.Inc()
		}
		s.log.Warnw("router: rejected malformed envelope", "identity", frame.Identity, "error", err)
		return
	}

	out := s.disp.Dispatch(frame.Identity, wire)
	for _, o := range out {
		payload, err := json.Marshal(o.Envelope)
		if err != nil {
			s.log.Errorw("router: failed to marshal outbound envelope", "target", o.Target, "error", err)
			continue
		}
		if err := s.tr.Send(o.Target, payload); err != nil {
			if s.met != nil {
				s.met.TransportSendErrors.WithLabelValues("default").Inc()
			}
			s.log.Warnw("router: send failed, skipping target", "target", o.Target, "error", err)
		}
	}
}

func (s *Service) startHTTP(ctx context.Context) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/registry", s.handleRegistry).Methods(http.MethodGet)

	s.httpSrv = &http.Server{Addr: s.httpAddr, Handler: r}
	go func() {
		<-ctx.Done()
		s.httpSrv.Close()
	}()
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warnw("router: http status server error", "error", err)
		}
	}()
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"peers":  s.reg.Len(),
	})
}

func (s *Service) handleRegistry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.reg.Snapshot())
}
