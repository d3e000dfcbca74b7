package httpserver

import (
	"fmt"
	"strings"
)

const (
	defaultListenAddr    = ":8080"
	defaultAllowedOrigin = "http://localhost:3000"
	defaultJWTIssuer     = "openarena"
)

// Config aggregates runtime settings for the wallet HTTP façade.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	AdminJWTSecret string
	AdminJWTIssuer string
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.AdminJWTIssuer = defaultIfEmpty(cfg.AdminJWTIssuer, defaultJWTIssuer)
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		return fmt.Errorf("admin jwt secret is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
