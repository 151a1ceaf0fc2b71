package config

import (
	"strings"

	"echoe-api/internal/analytics"
	"echoe-api/internal/integrations/gemini"
	"echoe-api/internal/usecase"
)

const DefaultAddr = ":8080"

// Config is everything the process reads from its environment apart from
// secrets, which are resolved per request through internal/secrets.
type Config struct {
	ParamPrefix    string
	GeminiModel    string
	EmailFrom      string
	LogLevel       string
	PostHogKey     string
	PostHogHost    string
	Addr           string
	AllowedOrigins []string
}

// Load reads the configuration through getenv, applying defaults.
func Load(getenv func(string) string) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	addr := get("PORT", DefaultAddr)
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return Config{
		ParamPrefix:    strings.TrimRight(get("PARAM_PREFIX", ""), "/"),
		GeminiModel:    get("GEMINI_MODEL", gemini.DefaultModel),
		EmailFrom:      get("EMAIL_FROM", usecase.DefaultSender),
		LogLevel:       get("LOG_LEVEL", "info"),
		PostHogKey:     get("POSTHOG_KEY", ""),
		PostHogHost:    get("POSTHOG_HOST", analytics.DefaultHost),
		Addr:           addr,
		AllowedOrigins: splitList(get("ALLOWED_ORIGINS", "*")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
