/*
Package config provides configuration loading for chatgraph deployments.

Two layers are offered. Config wraps an untyped map with type-safe
accessors and loads from YAML or JSON:

	cfg, err := config.FromFile("chatgraph.yaml")
	window := cfg.Int("context_window", config.DefaultContextWindow)

Settings is the typed surface the chat service consumes. Build it from a
Config or from the environment (a .env file is honored when present):

	settings := config.SettingsFromEnv()
	if settings.DatabaseURL == "" {
	    // checkpoints will be held in memory
	}

Every accessor and Normalize fall back to documented defaults, so partial
configuration is always usable.
*/
package config
