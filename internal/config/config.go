package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvWeights   = "CRYSTAL_WEIGHTS"
	EnvMetadata  = "CRYSTAL_METADATA"
	EnvORTLib    = "ONNXRUNTIME_LIB"
	EnvInterp    = "CRYSTAL_INTERP"
	EnvViewer    = "CRYSTAL_VIEWER"
	EnvLogLevel  = "CRYSTAL_LOG_LEVEL"
	DefaultModel = "protein.onnx"
)

// Config holds the defaults that command-line flags start from.
type Config struct {
	WeightsPath  string
	MetadataPath string
	ORTLibrary   string
	Interp       string
	Viewer       string
	LogLevel     string
}

// Load reads the environment, first merging a .env file from the working
// directory when one exists. Variables already set take precedence over
// the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return FromEnv(), nil
}

func FromEnv() *Config {
	return &Config{
		WeightsPath:  getEnv(EnvWeights, DefaultModel),
		MetadataPath: getEnv(EnvMetadata, ""),
		ORTLibrary:   getEnv(EnvORTLib, ""),
		Interp:       getEnv(EnvInterp, "nearest"),
		Viewer:       getEnv(EnvViewer, ""),
		LogLevel:     getEnv(EnvLogLevel, "warn"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
