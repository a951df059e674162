// config.go - Haupt-Konfigurationsfunktionen fuer das Gateway
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (GPUGATE_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (GPUGATE_ORIGINS)
// - RedisURL: Gibt die Redis-Adresse zurueck (REDIS_URL)
// - TaskTTL: Gibt die Lebensdauer von Task-Records zurueck (TASK_TTL_HOURS)
// - LoadTimeout: Gibt das Timeout fuer Model-Laden zurueck (GPUGATE_LOAD_TIMEOUT)
// - LogLevel: Gibt das Log-Level zurueck (GPUGATE_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_models.go: Model-Defaults, Feature-Flags und Runtime-Hints
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via GPUGATE_HOST
// Default: http://127.0.0.1:8000
func Host() *url.URL {
	defaultPort := "8000"

	s := Var("GPUGATE_HOST")
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt die erlaubten CORS-Origins zurueck
// Konfigurierbar via GPUGATE_ORIGINS (kommasepariert)
func AllowedOrigins() (origins []string) {
	if s := Var("GPUGATE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Standard-Origins fuer localhost
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// RedisURL gibt die Adresse des externen Key-Value-Stores zurueck
// Konfigurierbar via REDIS_URL
// Default: redis://localhost:6379/0
func RedisURL() string {
	if s := Var("REDIS_URL"); s != "" {
		return s
	}
	return "redis://localhost:6379/0"
}

// TaskTTL gibt die Lebensdauer von Task-Records zurueck
// Konfigurierbar via TASK_TTL_HOURS (Stunden)
// Default: 24 Stunden
func TaskTTL() time.Duration {
	ttl := 24 * time.Hour
	if s := Var("TASK_TTL_HOURS"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Hour
		} else {
			slog.Warn("invalid task ttl, using default", "value", s, "default", ttl)
		}
	}
	return ttl
}

// LoadTimeout gibt das Timeout fuer Model-Laden zurueck
// Konfigurierbar via GPUGATE_LOAD_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 5 Minuten
func LoadTimeout() (loadTimeout time.Duration) {
	loadTimeout = 5 * time.Minute
	if s := Var("GPUGATE_LOAD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			loadTimeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			loadTimeout = time.Duration(n) * time.Second
		}
	}
	if loadTimeout <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return loadTimeout
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via GPUGATE_DEBUG (bool oder Zahl fuer tiefere Level)
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("GPUGATE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}
