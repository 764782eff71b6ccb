package config

import (
	"os"
	"strconv"

	"ldaengine/internal/errors"
	"ldaengine/internal/sampling"
	"ldaengine/internal/sheetwriter"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathConfig
	Engine   EngineConfig
	LogLevel string
}

// DatabaseConfig holds run ledger connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	Workbook     string
	ColumnsFile  string
	SettingsFile string
}

// EngineConfig holds chunking and sampling limits
type EngineConfig struct {
	ValueChunkRows  int
	FormatChunkRows int
	ColorSampleRows int
	DateSampleRows  int
	ScaleSampleRows int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: *loadDatabaseConfig(),
		Server:   *loadServerConfig(),
		Paths:    *loadPathConfig(),
		Engine:   *loadEngineConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		URL:    getEnvOrDefault("DATABASE_URL", "file:ldaengine.db?_pragma=busy_timeout(5000)"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		Workbook:     getEnvOrDefault("LDA_WORKBOOK", ""),
		ColumnsFile:  getEnvOrDefault("LDA_COLUMNS_FILE", ""),
		SettingsFile: getEnvOrDefault("LDA_SETTINGS_FILE", ""),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		ValueChunkRows:  getEnvIntOrDefault("VALUE_CHUNK_ROWS", sheetwriter.DefaultValueChunkRows),
		FormatChunkRows: getEnvIntOrDefault("FORMAT_CHUNK_ROWS", sheetwriter.DefaultFormatChunkRows),
		ColorSampleRows: getEnvIntOrDefault("COLOR_SAMPLE_ROWS", sampling.DefaultColorSampleRows),
		DateSampleRows:  getEnvIntOrDefault("DATE_SAMPLE_ROWS", sampling.DefaultDateSampleRows),
		ScaleSampleRows: getEnvIntOrDefault("SCALE_SAMPLE_ROWS", sampling.DefaultScaleSampleRows),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be sqlite or postgres")
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	e := config.Engine
	if e.ValueChunkRows <= 0 || e.FormatChunkRows <= 0 {
		return errors.ConfigInvalid("chunk sizes must be positive")
	}
	if e.ColorSampleRows <= 0 || e.DateSampleRows <= 0 || e.ScaleSampleRows <= 0 {
		return errors.ConfigInvalid("sample sizes must be positive")
	}
	return nil
}

// WriterConfig returns the chunk sizes for the sheet writer
func (e EngineConfig) WriterConfig() sheetwriter.Config {
	return sheetwriter.Config{ValueChunkRows: e.ValueChunkRows, FormatChunkRows: e.FormatChunkRows}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
