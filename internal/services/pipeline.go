package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
)

// PipelineConfig holds everything NewPipeline needs to wire the
// Debug -> Expiry -> FromPeer -> ConfigService -> EchoService ->
// TelemetryGate -> Router chain in the order the system overview
// describes (§2).
type PipelineConfig struct {
	Address     ilp.Address
	AssetScale  uint8
	AssetCode   []byte
	Peers       []ConnectorPeer
	MaxTimeout  time.Duration
	DebugOpts   DebugOptions
	Sink        *TelemetrySink
	Router      Routable
	Log         *logrus.Entry
}

// DebugOptions mirrors config.DebugServiceConfig without importing
// internal/config (the ambient layering mirrors OutboundClient's
// interface-at-the-consumer convention elsewhere in this module).
type DebugOptions struct {
	LogPrepare bool
	LogFulfill bool
	LogReject  bool
}

// NewPipeline assembles the full incoming-packet pipeline, innermost stage
// first: the Router sits at the tail, and Debug wraps everything so it
// observes both the parsed request and the final Fulfill/Reject.
func NewPipeline(cfg PipelineConfig) Service {
	var chain Service = NewRouterService(cfg.Router)
	chain = NewTelemetryGate(cfg.Address, cfg.Sink, cfg.Log, chain)
	chain = NewEchoService(cfg.Address, chain)
	chain = NewConfigService(cfg.Address, cfg.AssetScale, cfg.AssetCode, cfg.Log, chain)
	chain = NewFromPeerService(cfg.Address, cfg.Peers, cfg.Log, chain)
	chain = NewExpiryService(cfg.Address, cfg.MaxTimeout, chain)
	chain = NewDebugService(cfg.DebugOpts.LogPrepare, cfg.DebugOpts.LogFulfill, cfg.DebugOpts.LogReject, cfg.Log, chain)
	return chain
}
