package agent

// Config values arrive from TOML, JSON, or literals, so numeric entries may
// be any of the Go number types. These helpers normalize access.

func configFloat(cfg Config, key string, fallback float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return fallback
	}
}

func configInt(cfg Config, key string, fallback int) int {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func configString(cfg Config, key, fallback string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return fallback
}
