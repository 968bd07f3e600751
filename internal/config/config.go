// Package config loads the JSON process configuration: the connector's own
// address (static or bootstrapped from a parent), its peers, its routing
// table, and the ambient logging/server/telemetry settings (§6).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/interledger/relay-connector/internal/router"
)

// Root is the top-level JSON configuration document.
type Root struct {
	ConnectorRoot ConnectorRoot            `json:"root"`
	Peers         []PeerConfig             `json:"peers"`
	Routes        RoutesConfig             `json:"routes"`
	DebugService  DebugServiceConfig       `json:"debug_service"`
	Telemetry     *TelemetryServiceConfig  `json:"telemetry_service,omitempty"`
	PreStopPath   string                   `json:"pre_stop_path,omitempty"`
	RoutingPartitionName string            `json:"routing_partition,omitempty"`
	Logging       LoggingConfig            `json:"logging,omitempty"`
	Server        ServerConfig             `json:"server,omitempty"`
	RateLimit     RateLimitConfig          `json:"rate_limit,omitempty"`
}

// RateLimitConfig bounds inbound request throughput per peer token (or, for
// unauthenticated requests, per source IP). RequestsPerMinute of 0 disables
// throttling.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
	BurstSize         int `json:"burst_size,omitempty"`
}

// ConnectorRoot is the tagged union {type: "Static"|"Dynamic", ...}.
type ConnectorRoot struct {
	Type string `json:"type"`

	// Static
	Address    string `json:"address,omitempty"`
	AssetScale uint8  `json:"asset_scale,omitempty"`
	AssetCode  string `json:"asset_code,omitempty"`

	// Dynamic
	ParentEndpoint string `json:"parent_endpoint,omitempty"`
	ParentAuth     string `json:"parent_auth,omitempty"`
	Name           string `json:"name,omitempty"`
}

func (c ConnectorRoot) validate() error {
	switch c.Type {
	case "Static":
		if c.Address == "" {
			return fmt.Errorf("root: Static requires address")
		}
		if c.AssetCode == "" {
			return fmt.Errorf("root: Static requires asset_code")
		}
	case "Dynamic":
		if c.ParentEndpoint == "" {
			return fmt.Errorf("root: Dynamic requires parent_endpoint")
		}
		if c.Name == "" {
			return fmt.Errorf("root: Dynamic requires name")
		}
	default:
		return fmt.Errorf("root: unknown type %q", c.Type)
	}
	return nil
}

// PeerConfig is one entry of the tagged union
// {type: "Child"|"Peer"|"Parent", account, auth, suffix?}.
type PeerConfig struct {
	Type    string   `json:"type"`
	Account string   `json:"account"`
	Auth    []string `json:"auth"`
	Suffix  string   `json:"suffix,omitempty"` // Child only
}

// Relation exposes relation() for internal/server's peer-wiring step.
func (p PeerConfig) Relation() (router.Relation, error) {
	return p.relation()
}

func (p PeerConfig) relation() (router.Relation, error) {
	switch p.Type {
	case "Child":
		if p.Suffix == "" {
			return 0, fmt.Errorf("peer %s: Child requires suffix", p.Account)
		}
		return router.RelationChild, nil
	case "Peer":
		return router.RelationPeer, nil
	case "Parent":
		return router.RelationParent, nil
	default:
		return 0, fmt.Errorf("peer %s: unknown type %q", p.Account, p.Type)
	}
}

// NextHopConfig mirrors router.NextHop, JSON-tagged.
type NextHopConfig struct {
	Kind           string `json:"kind"`
	Endpoint       string `json:"endpoint,omitempty"`
	EndpointPrefix string `json:"endpoint_prefix,omitempty"`
	EndpointSuffix string `json:"endpoint_suffix,omitempty"`
	Auth           string `json:"auth,omitempty"`
}

func (n NextHopConfig) toNextHop() (router.NextHop, error) {
	switch n.Kind {
	case "Bilateral":
		if n.Endpoint == "" {
			return router.NextHop{}, fmt.Errorf("next_hop: Bilateral requires endpoint")
		}
		return router.NextHop{Kind: router.Bilateral, Endpoint: n.Endpoint, Auth: n.Auth}, nil
	case "Multilateral":
		return router.NextHop{
			Kind:           router.Multilateral,
			EndpointPrefix: n.EndpointPrefix,
			EndpointSuffix: n.EndpointSuffix,
			Auth:           n.Auth,
		}, nil
	default:
		return router.NextHop{}, fmt.Errorf("next_hop: unknown kind %q", n.Kind)
	}
}

// FailoverConfig mirrors router.Failover; durations are milliseconds on the
// wire, matching the teacher's JSON-friendly duration convention elsewhere.
type FailoverConfig struct {
	WindowSize     int     `json:"window_size"`
	FailRatio      float64 `json:"fail_ratio"`
	FailDurationMs int     `json:"fail_duration_ms"`
}

func (f FailoverConfig) toFailover() *router.Failover {
	return &router.Failover{
		WindowSize:   f.WindowSize,
		FailRatio:    f.FailRatio,
		FailDuration: time.Duration(f.FailDurationMs) * time.Millisecond,
	}
}

// RouteEntry is one route within a prefix group (map form) or a full entry
// of the legacy array form (which additionally carries Prefix).
type RouteEntry struct {
	Prefix    string          `json:"prefix,omitempty"`
	NextHop   NextHopConfig   `json:"next_hop"`
	Account   string          `json:"account"`
	Failover  *FailoverConfig `json:"failover,omitempty"`
	Partition *float64        `json:"partition,omitempty"`
}

// RoutesConfig accepts either {<prefix>: [entry...]} or a flat legacy array
// of entries each carrying its own "prefix" field (§6).
type RoutesConfig map[string][]RouteEntry

func (r *RoutesConfig) UnmarshalJSON(data []byte) error {
	var grouped map[string][]RouteEntry
	if err := json.Unmarshal(data, &grouped); err == nil {
		*r = grouped
		return nil
	}

	var flat []RouteEntry
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("routes: neither map nor array form: %w", err)
	}
	grouped = make(map[string][]RouteEntry)
	for _, e := range flat {
		if e.Prefix == "" {
			return fmt.Errorf("routes: legacy array entry missing prefix")
		}
		grouped[e.Prefix] = append(grouped[e.Prefix], e)
	}
	*r = grouped
	return nil
}

// DebugServiceConfig controls the Debug service's per-outcome log lines.
type DebugServiceConfig struct {
	LogPrepare bool `json:"log_prepare"`
	LogFulfill bool `json:"log_fulfill"`
	LogReject  bool `json:"log_reject"`
}

// TelemetryServiceConfig configures the pluggable telemetry sink (§4.3.6).
type TelemetryServiceConfig struct {
	QueueCount            int    `json:"queue_count"`
	BatchCapacity         int    `json:"batch_capacity,omitempty"`
	FlushIntervalMs       int    `json:"flush_interval_ms"`
	Exporter              string `json:"exporter"`
	ProjectID             string `json:"project_id,omitempty"`
	DatasetID             string `json:"dataset_id,omitempty"`
	TableID               string `json:"table_id,omitempty"`
	ServiceAccountKeyFile string `json:"service_account_key_file,omitempty"`
}

// LoggingConfig follows the teacher's LoggingConfig shape.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
	Output string `json:"output,omitempty"`
}

// ServerConfig follows the teacher's ServerConfig shape.
type ServerConfig struct {
	BindAddr        string `json:"bind_addr,omitempty"`
	ReadTimeoutMs   int    `json:"read_timeout_ms,omitempty"`
	WriteTimeoutMs  int    `json:"write_timeout_ms,omitempty"`
	MaxHeaderBytes  int    `json:"max_header_bytes,omitempty"`
}

// Load reads configPath (if non-empty), overlays environment variables, and
// validates the result, following the defaults -> file -> env -> validate
// loader structure (§6).
func Load(configPath string) (*Root, error) {
	cfg := &Root{}
	cfg.setDefaults()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Root) setDefaults() {
	c.DebugService = DebugServiceConfig{LogPrepare: false, LogFulfill: false, LogReject: true}
	c.RoutingPartitionName = "Destination"
	c.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
	c.Server = ServerConfig{
		BindAddr:       "0.0.0.0:7770",
		ReadTimeoutMs:  30000,
		WriteTimeoutMs: 30000,
		MaxHeaderBytes: 1 << 20,
	}
}

func (c *Root) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return nil
}

func (c *Root) loadFromEnv() {
	if bind := os.Getenv("RELAY_BIND"); bind != "" {
		c.Server.BindAddr = bind
	}
}

func (c *Root) validate() error {
	if err := c.ConnectorRoot.validate(); err != nil {
		return err
	}
	tokenOwner := make(map[string]string)
	for _, p := range c.Peers {
		if _, err := p.relation(); err != nil {
			return err
		}
		for _, tok := range p.Auth {
			if other, ok := tokenOwner[tok]; ok && other != p.Account {
				return fmt.Errorf("peer %s: auth token already used by peer %s", p.Account, other)
			}
			tokenOwner[tok] = p.Account
		}
	}
	switch c.RoutingPartitionName {
	case "Destination", "ExecutionCondition":
	default:
		return fmt.Errorf("routing_partition: unknown value %q", c.RoutingPartitionName)
	}
	if c.Telemetry != nil {
		switch c.Telemetry.Exporter {
		case "log", "bigquery":
		default:
			return fmt.Errorf("telemetry_service: unknown exporter %q", c.Telemetry.Exporter)
		}
		if c.Telemetry.QueueCount <= 0 {
			return fmt.Errorf("telemetry_service: queue_count must be positive")
		}
	}
	return nil
}

// Partition converts RoutingPartitionName to a router.Partition.
func (c *Root) Partition() router.Partition {
	if c.RoutingPartitionName == "ExecutionCondition" {
		return router.PartitionExecutionCondition
	}
	return router.PartitionDestination
}

// StaticRoutes converts Routes into router.StaticRoute values. Entries of
// one prefix keep their JSON order; the order across prefixes follows Go map
// iteration and is not defined (NewTable re-sorts groups by
// length/lexicographic order regardless — see router.NewTable).
func (c *Root) StaticRoutes() ([]*router.StaticRoute, error) {
	var out []*router.StaticRoute
	for prefix, entries := range c.Routes {
		for _, e := range entries {
			nextHop, err := e.NextHop.toNextHop()
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", prefix, err)
			}
			s := &router.StaticRoute{
				TargetPrefix: prefix,
				NextHop:      nextHop,
				Account:      e.Account,
				Partition:    1,
			}
			if e.Failover != nil {
				s.Failover = e.Failover.toFailover()
			}
			if e.Partition != nil {
				s.Partition = *e.Partition
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *ServerConfig) readTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c *ServerConfig) writeTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// ReadTimeout and WriteTimeout expose ServerConfig's millisecond fields as
// time.Duration for internal/server's http.Server construction.
func (c ServerConfig) ReadTimeout() time.Duration  { return c.readTimeout() }
func (c ServerConfig) WriteTimeout() time.Duration { return c.writeTimeout() }
