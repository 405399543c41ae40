package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	DefaultPort         = "8080"
	DefaultPublishRate  = 100.0
	DefaultPublishBurst = 200
)

// Server holds broker configuration
type Server struct {
	Addr         string
	Token        string
	PublishRate  float64
	PublishBurst int
}

// ServerOptions carries broker flag values. Zero values defer to the
// environment.
type ServerOptions struct {
	Port         string
	Token        string
	PublishRate  float64
	PublishBurst int
}

// LoadServer reads broker configuration: flag > environment > default.
func LoadServer(opts ServerOptions) (*Server, error) {
	port := firstNonEmpty(opts.Port, os.Getenv("PORT"), DefaultPort)
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("invalid port %q", port)
	}

	rate := opts.PublishRate
	if rate == 0 {
		rate = DefaultPublishRate
		if v := os.Getenv("PUBLISH_RATE"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid PUBLISH_RATE value %q: %w", v, err)
			}
			rate = parsed
		}
	}
	if rate <= 0 {
		return nil, fmt.Errorf("publish rate must be positive, got %v", rate)
	}

	burst := opts.PublishBurst
	if burst == 0 {
		burst = DefaultPublishBurst
		if v := os.Getenv("PUBLISH_BURST"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid PUBLISH_BURST value %q: %w", v, err)
			}
			burst = parsed
		}
	}
	if burst <= 0 {
		return nil, fmt.Errorf("publish burst must be positive, got %d", burst)
	}

	return &Server{
		Addr:         ":" + port,
		Token:        firstNonEmpty(opts.Token, os.Getenv("BROKER_TOKEN")),
		PublishRate:  rate,
		PublishBurst: burst,
	}, nil
}
