package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BioHazard786/sensorlink/internal/protocol"
)

// Default configuration values (production)
const (
	DefaultDomain = "sensorlink.qzz.io"
	DefaultFormat = protocol.FormatJSON
)

// Config holds peer configuration
type Config struct {
	// Domain is the broker domain, optionally with a port
	Domain string

	// Insecure selects ws:// and http:// instead of wss:// and https://
	Insecure bool

	// Token is the opaque credential presented to the broker
	Token string

	// Format is the wire format, json or msgpack
	Format string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// ShareBaseURL is the base of share links handed to the sender
	ShareBaseURL string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain   string
	Insecure bool
	Token    string
	Format   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	domain = strings.TrimRight(domain, "/")
	if strings.Contains(domain, "://") {
		return nil, fmt.Errorf("domain %q must not include a scheme", domain)
	}

	insecure := opts.Insecure
	if !insecure {
		if v := os.Getenv("INSECURE"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid INSECURE value %q: %w", v, err)
			}
			insecure = b
		}
	}

	format := strings.ToLower(firstNonEmpty(opts.Format, os.Getenv("WIRE_FORMAT"), DefaultFormat))
	if _, err := protocol.CodecFor(format); err != nil {
		return nil, err
	}

	wsScheme, httpScheme := "wss", "https"
	if insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	ws := url.URL{Scheme: wsScheme, Host: domain, Path: "/ws"}
	share := url.URL{Scheme: httpScheme, Host: domain}

	return &Config{
		Domain:       domain,
		Insecure:     insecure,
		Token:        firstNonEmpty(opts.Token, os.Getenv("BROKER_TOKEN")),
		Format:       format,
		WebSocketURL: ws.String(),
		ShareBaseURL: share.String(),
	}, nil
}

// Codec returns the frame codec for the configured wire format.
func (c *Config) Codec() protocol.Codec {
	codec, err := protocol.CodecFor(c.Format)
	if err != nil {
		return protocol.JSON
	}
	return codec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
