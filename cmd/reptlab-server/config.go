package main

import (
	"encoding/json"
	"flag"
	"os"

	"reptlab/internal/rept"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr         string
	DefaultSimID string
	ConfigFile   string
	DBPath       string
	NarrateModel string
	LogLevel     string
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

// loadServerConfig loads server configuration from CLI flags and environment variables.
// Uses a resolver pattern to make it easy to add new configuration options.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	// Define all configuration resolvers
	// To add a new option, just add a new resolver here
	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "REPTLAB_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "sim-id",
			envVarName:  "REPTLAB_SIM_ID",
			defaultVal:  "default",
			description: "default simulation ID for the initial configuration",
			setter:      func(c *ServerConfig, v string) { c.DefaultSimID = v },
		},
		{
			flagName:    "config-file",
			envVarName:  "REPTLAB_CONFIG_FILE",
			defaultVal:  "",
			description: "optional path to a JSON simulation config file to load at startup",
			setter:      func(c *ServerConfig, v string) { c.ConfigFile = v },
		},
		{
			flagName:    "db-path",
			envVarName:  "REPTLAB_DB_PATH",
			defaultVal:  "",
			description: "optional path to a SQLite database for archiving runs",
			setter:      func(c *ServerConfig, v string) { c.DBPath = v },
		},
		{
			flagName:    "narrate-model",
			envVarName:  "REPTLAB_NARRATE_MODEL",
			defaultVal:  "",
			description: "text-generation model used for result narration; empty uses the client default",
			setter:      func(c *ServerConfig, v string) { c.NarrateModel = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "REPTLAB_LOG_LEVEL",
			defaultVal:  "info",
			description: "Log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
	}

	// Register string flags first
	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	// Parse flags once
	flag.Parse()

	// Resolve values for each resolver
	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}

// initialConfigFile is the shape of the optional startup config file:
// structural parameters plus optional runtime overrides.
type initialConfigFile struct {
	Simulation rept.SimulationConfig `json:"simulation"`
	Runtime    *rept.RuntimeConfig   `json:"runtime,omitempty"`
}

// loadInitialConfigFromFile reads and validates a simulation config
// file. Missing runtime settings fall back to the defaults.
func loadInitialConfigFromFile(path string) (rept.SimulationConfig, rept.RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rept.SimulationConfig{}, rept.RuntimeConfig{}, err
	}

	var file initialConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return rept.SimulationConfig{}, rept.RuntimeConfig{}, err
	}

	if err := rept.ValidateConfig(file.Simulation); err != nil {
		return rept.SimulationConfig{}, rept.RuntimeConfig{}, err
	}

	runtime := rept.DefaultRuntimeConfig()
	if file.Runtime != nil {
		runtime = *file.Runtime
	}
	if err := rept.ValidateRuntimeConfig(runtime); err != nil {
		return rept.SimulationConfig{}, rept.RuntimeConfig{}, err
	}

	return file.Simulation, runtime, nil
}
