// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	// Registry input
	RegistryFile string // Path to the cleaned registry table

	// Model configuration
	ClusterCount    int
	Seed            int64
	MaxIterations   int
	Tolerance       float64
	NRestarts       int
	CriticalWeight  float64
	ImportantWeight float64
	BinBreakpoints  []float64
	TopKDefault     int

	// Eligibility rules
	AcceptedRegistrationStatuses []string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		RegistryFile: getEnvWithDefault("REGISTRY_FILE", "data/registro_sanitario.csv"),

		ClusterCount:    getIntEnvWithDefault("CLUSTER_COUNT", 8),
		Seed:            getInt64EnvWithDefault("SEED", 42),
		MaxIterations:   getIntEnvWithDefault("MAX_ITERATIONS", 300),
		Tolerance:       getFloatEnvWithDefault("TOLERANCE", 1e-4),
		NRestarts:       getIntEnvWithDefault("N_RESTARTS", 10),
		CriticalWeight:  getFloatEnvWithDefault("CRITICAL_WEIGHT", 0.85),
		ImportantWeight: getFloatEnvWithDefault("IMPORTANT_WEIGHT", 0.15),
		TopKDefault:     getIntEnvWithDefault("TOP_K_DEFAULT", 10),
	}

	breakpoints, err := parseBreakpoints(getEnvWithDefault("BIN_BREAKPOINTS", "10,100,500"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIN_BREAKPOINTS: %w", err)
	}
	cfg.BinBreakpoints = breakpoints

	statuses := getEnvWithDefault("ACCEPTED_REGISTRATION_STATUSES", "VIGENTE,EN TRAMITE RENOVACION")
	for _, s := range strings.Split(statuses, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			cfg.AcceptedRegistrationStatuses = append(cfg.AcceptedRegistrationStatuses, s)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateModel(cfg); err != nil {
		return err
	}

	if cfg.RegistryFile == "" {
		return fmt.Errorf("REGISTRY_FILE cannot be empty")
	}

	if len(cfg.AcceptedRegistrationStatuses) == 0 {
		return fmt.Errorf("ACCEPTED_REGISTRATION_STATUSES cannot be empty")
	}

	return nil
}

// validateModel validates the clustering and weighting configuration
func validateModel(cfg *Config) error {
	if cfg.ClusterCount <= 0 {
		return fmt.Errorf("invalid CLUSTER_COUNT: must be positive, got %d", cfg.ClusterCount)
	}
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("invalid MAX_ITERATIONS: must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("invalid TOLERANCE: must be non-negative, got %v", cfg.Tolerance)
	}
	if cfg.NRestarts <= 0 {
		return fmt.Errorf("invalid N_RESTARTS: must be positive, got %d", cfg.NRestarts)
	}
	if cfg.CriticalWeight < 0 || cfg.CriticalWeight > 1 {
		return fmt.Errorf("invalid CRITICAL_WEIGHT: must be in [0,1], got %v", cfg.CriticalWeight)
	}
	if cfg.ImportantWeight < 0 || cfg.ImportantWeight > 1 {
		return fmt.Errorf("invalid IMPORTANT_WEIGHT: must be in [0,1], got %v", cfg.ImportantWeight)
	}
	if sum := cfg.CriticalWeight + cfg.ImportantWeight; sum < 0.999999 || sum > 1.000001 {
		return fmt.Errorf("CRITICAL_WEIGHT and IMPORTANT_WEIGHT must sum to 1, got %v", sum)
	}
	if cfg.TopKDefault <= 0 {
		return fmt.Errorf("invalid TOP_K_DEFAULT: must be positive, got %d", cfg.TopKDefault)
	}
	if !sort.Float64sAreSorted(cfg.BinBreakpoints) {
		return fmt.Errorf("BIN_BREAKPOINTS must be sorted ascending, got %v", cfg.BinBreakpoints)
	}
	return nil
}

// parseBreakpoints parses a comma-separated breakpoint list
func parseBreakpoints(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	breakpoints := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %q is not a number: %w", p, err)
		}
		breakpoints = append(breakpoints, f)
	}
	if len(breakpoints) == 0 {
		return nil, fmt.Errorf("breakpoint list is empty")
	}
	return breakpoints, nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	// Check if it's a valid IP address
	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	ip := net.ParseIP(address)
	if ip != nil && !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []string{"dev", "staging", "prod", "test"}
	env = strings.ToLower(env)

	for _, validEnv := range validEnvs {
		if env == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
