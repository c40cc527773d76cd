package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/security"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

const (
	DefaultProfile   = "default"
	DefaultConfigDir = "configs"

	DependencyPostgres = "postgres"
	DependencyRedis    = "redis"
	DependencyKafka    = "kafka"
)

// Config is the resolved runtime configuration for the gateway.
// It is fully built before any component is wired.
type Config struct {
	Profile   string
	ConfigDir string
	ServiceID string

	HTTPEnabled bool
	HTTPPort    int
	GRPCEnabled bool
	GRPCPort    int

	ShutdownTimeout time.Duration
	LogLevel        string

	RequiredDependencies []string

	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	KafkaBrokers        []string
	KafkaLifecycleTopic string
	KafkaTopicByEvent   map[string]string

	AdminJWTSecret string
	AdminJWTIssuer string

	HeartbeatInterval time.Duration
	RegistryTTL       time.Duration

	// PositionalArgs are the startup arguments that are not property overrides.
	PositionalArgs []string
}

// configFile mirrors the YAML schema of configs/<profile>.yaml.
// Pointers distinguish "unset" from an explicit zero such as an ephemeral port.
type configFile struct {
	Service struct {
		ID                     string `yaml:"id"`
		HTTPEnabled            *bool  `yaml:"http_enabled"`
		HTTPPort               *int   `yaml:"http_port"`
		GRPCEnabled            *bool  `yaml:"grpc_enabled"`
		GRPCPort               *int   `yaml:"grpc_port"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"service"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Dependencies struct {
		Required            []string          `yaml:"required"`
		PostgresURL         string            `yaml:"postgres_url"`
		PostgresMaxConns    int32             `yaml:"postgres_max_conns"`
		RedisURL            string            `yaml:"redis_url"`
		KafkaBrokers        []string          `yaml:"kafka_brokers"`
		KafkaLifecycleTopic string            `yaml:"kafka_lifecycle_topic"`
		KafkaTopics         map[string]string `yaml:"kafka_topics"`
	} `yaml:"dependencies"`
	Admin struct {
		JWTIssuer string `yaml:"jwt_issuer"`
	} `yaml:"admin"`
	Heartbeat struct {
		IntervalSeconds    int `yaml:"interval_seconds"`
		RegistryTTLSeconds int `yaml:"registry_ttl_seconds"`
	} `yaml:"heartbeat"`
}

func defaultConfig() Config {
	return Config{
		Profile:             DefaultProfile,
		ConfigDir:           DefaultConfigDir,
		ServiceID:           "M99-Compliance-Gateway",
		HTTPEnabled:         true,
		HTTPPort:            8080,
		GRPCEnabled:         true,
		GRPCPort:            9090,
		ShutdownTimeout:     10 * time.Second,
		LogLevel:            "info",
		MaxDBConns:          10,
		KafkaLifecycleTopic: "compliance.gateway.lifecycle",
		AdminJWTIssuer:      "m99-compliance-gateway",
		HeartbeatInterval:   10 * time.Second,
		RegistryTTL:         30 * time.Second,
	}
}

// LoadConfig resolves configuration in priority order:
// defaults -> default.yaml -> <profile>.yaml -> env -> --key=value arguments.
func LoadConfig(args []string) (Config, error) {
	return loadConfig(args, os.Getenv)
}

func loadConfig(args []string, getenv func(string) string) (Config, error) {
	props, positional, err := parseArgs(args)
	if err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	cfg.PositionalArgs = positional
	cfg.Profile = firstNonEmpty(props["profile"], getenv("GATEWAY_PROFILE"), DefaultProfile)
	cfg.ConfigDir = firstNonEmpty(props["config.dir"], getenv("GATEWAY_CONFIG_DIR"), DefaultConfigDir)

	if err := applyFile(&cfg, filepath.Join(cfg.ConfigDir, DefaultProfile+".yaml"), true); err != nil {
		return Config{}, err
	}
	if cfg.Profile != DefaultProfile {
		if err := applyFile(&cfg, filepath.Join(cfg.ConfigDir, cfg.Profile+".yaml"), false); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, getenv)

	for key, value := range props {
		if key == "profile" || key == "config.dir" {
			continue
		}
		if err := recognizedProperties[key](&cfg, value); err != nil {
			return Config{}, fmt.Errorf("%w: --%s: %v", domain.ErrInvalidConfiguration, key, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile overlays one YAML file. The base file may be absent; a selected profile file may not.
func applyFile(cfg *Config, path string, optional bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if optional {
				return nil
			}
			return fmt.Errorf("%w: profile %q has no config file %s", domain.ErrMissingConfiguration, cfg.Profile, path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", domain.ErrInvalidConfiguration, path, err)
	}

	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPEnabled != nil {
		cfg.HTTPEnabled = *f.Service.HTTPEnabled
	}
	if f.Service.HTTPPort != nil {
		cfg.HTTPPort = *f.Service.HTTPPort
	}
	if f.Service.GRPCEnabled != nil {
		cfg.GRPCEnabled = *f.Service.GRPCEnabled
	}
	if f.Service.GRPCPort != nil {
		cfg.GRPCPort = *f.Service.GRPCPort
	}
	if f.Service.ShutdownTimeoutSeconds > 0 {
		cfg.ShutdownTimeout = time.Duration(f.Service.ShutdownTimeoutSeconds) * time.Second
	}
	if f.Logging.Level != "" {
		cfg.LogLevel = f.Logging.Level
	}
	if len(f.Dependencies.Required) > 0 {
		cfg.RequiredDependencies = f.Dependencies.Required
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.PostgresMaxConns > 0 {
		cfg.MaxDBConns = f.Dependencies.PostgresMaxConns
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.KafkaLifecycleTopic != "" {
		cfg.KafkaLifecycleTopic = f.Dependencies.KafkaLifecycleTopic
	}
	if len(f.Dependencies.KafkaTopics) > 0 {
		cfg.KafkaTopicByEvent = f.Dependencies.KafkaTopics
	}
	if f.Admin.JWTIssuer != "" {
		cfg.AdminJWTIssuer = f.Admin.JWTIssuer
	}
	if f.Heartbeat.IntervalSeconds > 0 {
		cfg.HeartbeatInterval = time.Duration(f.Heartbeat.IntervalSeconds) * time.Second
	}
	if f.Heartbeat.RegistryTTLSeconds > 0 {
		cfg.RegistryTTL = time.Duration(f.Heartbeat.RegistryTTLSeconds) * time.Second
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	cfg.ServiceID = envOrDefault(getenv, "SERVICE_ID", cfg.ServiceID)
	cfg.HTTPEnabled = envBool(getenv, "HTTP_ENABLED", cfg.HTTPEnabled)
	cfg.HTTPPort = envInt(getenv, "HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCEnabled = envBool(getenv, "GRPC_ENABLED", cfg.GRPCEnabled)
	cfg.GRPCPort = envInt(getenv, "GRPC_PORT", cfg.GRPCPort)
	cfg.ShutdownTimeout = time.Duration(envInt(getenv, "SHUTDOWN_TIMEOUT_SECONDS", int(cfg.ShutdownTimeout.Seconds()))) * time.Second
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(envOrDefault(getenv, "LOG_LEVEL", cfg.LogLevel)))
	cfg.RequiredDependencies = envCSV(getenv, "REQUIRED_DEPENDENCIES", cfg.RequiredDependencies)

	cfg.DatabaseURL = envOrDefault(getenv, "DB_URL", envOrDefault(getenv, "POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt(getenv, "DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault(getenv, "REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV(getenv, "KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaLifecycleTopic = envOrDefault(getenv, "KAFKA_LIFECYCLE_TOPIC", cfg.KafkaLifecycleTopic)

	cfg.AdminJWTSecret = envOrDefault(getenv, "ADMIN_JWT_SECRET", cfg.AdminJWTSecret)
	cfg.AdminJWTIssuer = envOrDefault(getenv, "ADMIN_JWT_ISSUER", cfg.AdminJWTIssuer)

	cfg.HeartbeatInterval = time.Duration(envInt(getenv, "HEARTBEAT_INTERVAL_SECONDS", int(cfg.HeartbeatInterval.Seconds()))) * time.Second
	cfg.RegistryTTL = time.Duration(envInt(getenv, "REGISTRY_TTL_SECONDS", int(cfg.RegistryTTL.Seconds()))) * time.Second
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidConfiguration}, args...)...))
	}
	missing := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrMissingConfiguration}, args...)...))
	}

	if strings.TrimSpace(c.ServiceID) == "" {
		missing("service id")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		invalid("http port %d out of range", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		invalid("grpc port %d out of range", c.GRPCPort)
	}
	if c.HTTPEnabled && c.GRPCEnabled && c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		invalid("http and grpc ports must differ, both are %d", c.HTTPPort)
	}
	if c.ShutdownTimeout <= 0 {
		invalid("shutdown timeout must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		invalid("heartbeat interval must be positive")
	}
	if c.RegistryTTL < c.HeartbeatInterval {
		invalid("registry ttl %s must not be shorter than heartbeat interval %s", c.RegistryTTL, c.HeartbeatInterval)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		invalid("log level %q", c.LogLevel)
	}
	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < security.MinSecretLength {
		invalid("admin jwt secret must be at least %d bytes", security.MinSecretLength)
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaLifecycleTopic) == "" {
		missing("kafka lifecycle topic")
	}

	for _, dep := range c.RequiredDependencies {
		switch strings.ToLower(strings.TrimSpace(dep)) {
		case DependencyPostgres:
			if c.DatabaseURL == "" {
				missing("required dependency postgres has no DB_URL/POSTGRES_URL")
			}
		case DependencyRedis:
			if c.RedisURL == "" {
				missing("required dependency redis has no REDIS_URL")
			}
		case DependencyKafka:
			if len(c.KafkaBrokers) == 0 {
				missing("required dependency kafka has no KAFKA_BROKERS")
			}
		default:
			invalid("unknown required dependency %q", dep)
		}
	}
	return errors.Join(errs...)
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(raw)))
	return level, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(getenv func(string) string, name, fallback string) string {
	if value := getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(getenv func(string) string, name string, fallback int) int {
	raw := getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(getenv func(string) string, name string, fallback bool) bool {
	raw := getenv(name)
	if raw == "" {
		return fallback
	}
	if v, ok := parseBool(raw); ok {
		return v
	}
	return fallback
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(getenv func(string) string, name string, fallback []string) []string {
	if parts := splitCSV(getenv(name)); len(parts) > 0 {
		return parts
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return parts
}
