package bootstrap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

// recognizedProperties lists every --key=value override accepted on the command line.
// "profile" and "config.dir" are resolved before any file is read.
var recognizedProperties = map[string]func(*Config, string) error{
	"profile":    func(*Config, string) error { return nil },
	"config.dir": func(*Config, string) error { return nil },
	"service.id": func(c *Config, v string) error {
		c.ServiceID = v
		return nil
	},
	"http.enabled": func(c *Config, v string) error { return setBool(&c.HTTPEnabled, v) },
	"http.port":    func(c *Config, v string) error { return setInt(&c.HTTPPort, v) },
	"grpc.enabled": func(c *Config, v string) error { return setBool(&c.GRPCEnabled, v) },
	"grpc.port":    func(c *Config, v string) error { return setInt(&c.GRPCPort, v) },
	"shutdown.timeout": func(c *Config, v string) error {
		return setDuration(&c.ShutdownTimeout, v)
	},
	"log.level": func(c *Config, v string) error {
		c.LogLevel = strings.ToLower(v)
		return nil
	},
	"dependencies.required": func(c *Config, v string) error {
		c.RequiredDependencies = splitCSV(v)
		return nil
	},
	"postgres.url": func(c *Config, v string) error {
		c.DatabaseURL = v
		return nil
	},
	"redis.url": func(c *Config, v string) error {
		c.RedisURL = v
		return nil
	},
	"kafka.brokers": func(c *Config, v string) error {
		c.KafkaBrokers = splitCSV(v)
		return nil
	},
	"kafka.lifecycle-topic": func(c *Config, v string) error {
		c.KafkaLifecycleTopic = v
		return nil
	},
	"heartbeat.interval": func(c *Config, v string) error { return setDuration(&c.HeartbeatInterval, v) },
	"registry.ttl":       func(c *Config, v string) error { return setDuration(&c.RegistryTTL, v) },
}

// parseArgs splits startup arguments into --key=value property overrides and
// positional arguments. Everything after a bare "--" is positional.
func parseArgs(args []string) (map[string]string, []string, error) {
	props := map[string]string{}
	positional := make([]string, 0)
	for i, arg := range args {
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok {
			return nil, nil, fmt.Errorf("%w: argument %q must have the form --key=value", domain.ErrInvalidConfiguration, arg)
		}
		if _, known := recognizedProperties[key]; !known {
			return nil, nil, fmt.Errorf("%w: unknown property --%s", domain.ErrInvalidConfiguration, key)
		}
		props[key] = strings.TrimSpace(value)
	}
	return props, positional, nil
}

func setInt(dst *int, raw string) error {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("not an integer: %q", raw)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, raw string) error {
	v, ok := parseBool(raw)
	if !ok {
		return fmt.Errorf("not a boolean: %q", raw)
	}
	*dst = v
	return nil
}

func setDuration(dst *time.Duration, raw string) error {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("not a duration: %q", raw)
	}
	*dst = v
	return nil
}
