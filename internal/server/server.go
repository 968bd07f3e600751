// Package server wires the configuration, routing table, outbound client,
// packet pipeline, and ingress middleware stack into a runnable HTTP
// server, replacing the teacher's internal/server/server.go's LLM-routing
// endpoints with the ILP ingress route (§4.2, §6).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/client"
	"github.com/interledger/relay-connector/internal/config"
	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/metrics"
	"github.com/interledger/relay-connector/internal/middlewares"
	"github.com/interledger/relay-connector/internal/router"
	"github.com/interledger/relay-connector/internal/services"
)

// Server bundles the HTTP listener with the background work (telemetry
// flush) that must be drained on shutdown.
type Server struct {
	httpServer *http.Server
	sink       *services.TelemetrySink
	log        *logrus.Entry
}

// New resolves the connector's own address, builds the routing table and
// outbound client, assembles the packet pipeline, and mounts it behind the
// ingress middleware stack (PreStop -> HealthCheck -> Method -> RateLimit ->
// AuthToken -> Receiver), mirroring the teacher's NewServer/setupRoutes split.
func New(ctx context.Context, cfg *config.Root, reg *metrics.Registry, log *logrus.Entry) (*Server, error) {
	root, err := cfg.ConnectorRoot.Resolve(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("resolving connector root: %w", err)
	}
	selfAddress := root.ClientAddress

	peers, err := buildPeers(cfg.Peers, selfAddress)
	if err != nil {
		return nil, fmt.Errorf("building peers: %w", err)
	}

	statics, err := cfg.StaticRoutes()
	if err != nil {
		return nil, fmt.Errorf("building routes: %w", err)
	}
	table := router.NewTable(statics, cfg.Partition(), time.Now())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	outbound := client.New(selfAddress, httpClient, log)
	outbound.Metrics = reg
	rt := router.New(table, outbound, selfAddress, log)
	rt.Metrics = reg

	sink := buildTelemetrySink(cfg.Telemetry, log)
	sink.Metrics = reg
	sink.Start(ctx)

	pipeline := services.NewPipeline(services.PipelineConfig{
		Address:    selfAddress,
		AssetScale: root.AssetScale,
		AssetCode:  root.AssetCode,
		Peers:      peers,
		MaxTimeout: services.DefaultMaxTimeout,
		DebugOpts: services.DebugOptions{
			LogPrepare: cfg.DebugService.LogPrepare,
			LogFulfill: cfg.DebugService.LogFulfill,
			LogReject:  cfg.DebugService.LogReject,
		},
		Sink:   sink,
		Router: rt,
		Log:    log,
	})

	mr := mux.NewRouter()
	mr.Handle("/metrics", promhttp.HandlerFor(reg.Registerer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	tokens := authTokens(cfg.Peers)
	chain := buildIngressChain(cfg, pipeline, tokens, sink, log)
	mr.PathPrefix("/").Handler(chain)

	httpServer := &http.Server{
		Addr:           cfg.Server.BindAddr,
		Handler:        mr,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return &Server{httpServer: httpServer, sink: sink, log: log}, nil
}

func buildIngressChain(
	cfg *config.Root,
	pipeline services.Service,
	tokens []string,
	sink *services.TelemetrySink,
	log *logrus.Entry,
) http.Handler {
	receiver := middlewares.NewReceiver(pipeline, log)
	auth := middlewares.NewAuthToken(tokens, log)
	rateLimit := middlewares.NewRateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize, middlewares.AuthHeaderKeyExtractor, log)
	method := middlewares.NewMethod(http.MethodPost, log)
	preStop := middlewares.NewPreStop(cfg.PreStopPath, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rateLimit.Stop()
		sink.Stop(stopCtx)
	}, log)

	var handler http.Handler = receiver
	handler = auth.Middleware(handler)
	handler = rateLimit.Middleware(handler)
	handler = method.Middleware(handler)
	handler = middlewares.HealthCheck(handler)
	handler = preStop.Middleware(handler)
	return handler
}

// buildPeers derives each configured peer's full ILP address: a Child's
// address is the connector's own address with its configured suffix
// appended, a Peer's or Parent's is the connector's own address unchanged
// (ports interledger-relay's from_peer.rs peer construction).
func buildPeers(configured []config.PeerConfig, selfAddress ilp.Address) ([]services.ConnectorPeer, error) {
	peers := make([]services.ConnectorPeer, 0, len(configured))
	for _, p := range configured {
		relation, err := p.Relation()
		if err != nil {
			return nil, err
		}

		address := selfAddress
		if relation == router.RelationChild {
			address, err = selfAddress.WithSuffix(p.Suffix)
			if err != nil {
				return nil, fmt.Errorf("peer %s: %w", p.Account, err)
			}
		}

		auth := make(map[string]bool, len(p.Auth))
		for _, tok := range p.Auth {
			auth[tok] = true
		}

		peers = append(peers, services.ConnectorPeer{
			Relation: relation,
			Account:  p.Account,
			Address:  address,
			Auth:     auth,
		})
	}
	return peers, nil
}

// authTokens flattens every configured peer's tokens into the set
// AuthToken middleware accepts; FromPeerService then re-derives which
// specific peer matched.
func authTokens(configured []config.PeerConfig) []string {
	var tokens []string
	for _, p := range configured {
		tokens = append(tokens, p.Auth...)
	}
	return tokens
}

func buildTelemetrySink(cfg *config.TelemetryServiceConfig, log *logrus.Entry) *services.TelemetrySink {
	if cfg == nil {
		return services.NewTelemetrySink(0, 0, 0, nil, log)
	}

	var exporter services.Exporter
	switch cfg.Exporter {
	case "bigquery":
		log.Warn("bigquery telemetry exporter is not implemented in this build; falling back to log exporter")
		exporter = &services.LogExporter{Log: log}
	default:
		exporter = &services.LogExporter{Log: log}
	}

	capacity := cfg.BatchCapacity
	if capacity <= 0 {
		capacity = 100
	}
	flushInterval := time.Duration(cfg.FlushIntervalMs) * time.Millisecond
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	return services.NewTelemetrySink(cfg.QueueCount, capacity, flushInterval, exporter, log)
}

// ListenAndServe starts the HTTP server; it blocks until Shutdown is called
// or an unrecoverable error occurs.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("relay listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the HTTP listener and the telemetry sink.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.sink.Stop(ctx)
	return nil
}
