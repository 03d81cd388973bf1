package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	TokenHeader string
	Token       string
}

// LoadAPIConfig reads the static API token. When NOVEL_API_TOKEN is unset,
// token checks are skipped (local development); set it in production.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		TokenHeader: "X-API-TOKEN",
		Token:       os.Getenv("NOVEL_API_TOKEN"),
	}
}

type QueueConfig struct {
	// FetchInterval is the minimum delay between chapter fetches against one
	// source site.
	FetchInterval time.Duration
}

func LoadQueueConfig() QueueConfig {
	interval := 1 * time.Second
	if s := os.Getenv("NOVEL_FETCH_INTERVAL_MS"); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}
	return QueueConfig{FetchInterval: interval}
}

// EnabledSites parses NOVEL_ENABLED_SITES ("alice,xspsw,wfxs"). An empty
// value enables every registered site.
func EnabledSites() []string {
	raw := strings.TrimSpace(os.Getenv("NOVEL_ENABLED_SITES"))
	if raw == "" {
		return nil
	}
	var sites []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sites = append(sites, s)
		}
	}
	return sites
}

func SiteEnabled(enabled []string, name string) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, s := range enabled {
		if s == name || strings.Contains(name, s) {
			return true
		}
	}
	return false
}
