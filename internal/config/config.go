package config

import (
	"os"
	"strconv"
	"time"
)

// IdentityPolicy controls where PID validation happens in the pipeline.
type IdentityPolicy string

const (
	// IdentityPolicyGate validates the PID once, before any slot is touched.
	// A rejection aborts the entire run.
	IdentityPolicyGate IdentityPolicy = "gate"
	// IdentityPolicyPerRequest skips the up-front gate and attaches the PID
	// to each bid request, leaving acceptance to the decision endpoint.
	IdentityPolicyPerRequest IdentityPolicy = "per_request"
)

// Config holds engine configuration derived from environment variables.
type Config struct {
	DecisionURL string
	IdentityURL string
	JourneyURL  string
	CDNBaseURL  string
	PID         string

	IdentityPolicy IdentityPolicy

	BidTimeout   time.Duration
	NavigateWait time.Duration

	// Viewability parameters: minimum on-screen area ratio and the
	// continuous dwell required before an impression becomes billable.
	ViewabilityThreshold float64
	ViewabilityDwell     time.Duration

	// Context readiness polling: base delay doubles each attempt.
	ContextBackoffBase time.Duration
	ContextMaxAttempts int

	// Device facts not derivable from the UA string.
	UserAgent string
	ClientIP  string
	IPv6      string
	Carrier   string
	GeoIPDB   string

	MetricsAddr string
	ServiceName string

	// Tracing configuration
	TracingEnabled    bool
	TraceEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.DecisionURL = getenv("DECISION_URL", "http://localhost:8788/bid")
	cfg.IdentityURL = getenv("IDENTITY_URL", "http://localhost:8788/identity")
	cfg.JourneyURL = getenv("JOURNEY_URL", "http://localhost:8788/journey")
	cfg.CDNBaseURL = getenv("CDN_BASE_URL", "")
	cfg.PID = getenv("PID", "")

	switch getenv("IDENTITY_POLICY", string(IdentityPolicyGate)) {
	case string(IdentityPolicyPerRequest):
		cfg.IdentityPolicy = IdentityPolicyPerRequest
	default:
		cfg.IdentityPolicy = IdentityPolicyGate
	}

	cfg.BidTimeout = envDuration("BID_TIMEOUT", 3*time.Second)
	cfg.NavigateWait = envDuration("NAVIGATE_WAIT", 100*time.Millisecond)

	cfg.ViewabilityThreshold = envFloat("VIEWABILITY_THRESHOLD", 0.5)
	cfg.ViewabilityDwell = envDuration("VIEWABILITY_DWELL", time.Second)

	cfg.ContextBackoffBase = envDuration("CONTEXT_BACKOFF_BASE", 500*time.Millisecond)
	cfg.ContextMaxAttempts = envInt("CONTEXT_MAX_ATTEMPTS", 5)

	cfg.UserAgent = getenv("DEVICE_UA", "")
	cfg.ClientIP = getenv("CLIENT_IP", "")
	cfg.IPv6 = getenv("CLIENT_IPV6", "")
	cfg.Carrier = getenv("CARRIER", "")
	cfg.GeoIPDB = getenv("GEOIP_DB", "internal/geoip/testdata/GeoLite2-City.mmdb")

	cfg.MetricsAddr = getenv("METRICS_ADDR", ":9187")
	cfg.ServiceName = getenv("SERVICE_NAME", "slotengine")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TraceEndpoint = getenv("TRACE_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
