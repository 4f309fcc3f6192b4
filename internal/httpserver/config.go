package httpserver

import "time"

// Config carries the HTTP façade settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	TokenSigningKey string
	TokenIssuer     string
	ShutdownTimeout time.Duration
}
