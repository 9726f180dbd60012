package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

const DEV_ENV_FILENAME = ".env.development"
const PROD_ENV_FILENAME = ".env.production"

const (
	GatewayURLEnv      = "IB_GATEWAY_URL"
	GatewayPaperURLEnv = "IB_GATEWAY_PAPER_URL"
	GatewaySessionEnv  = "IB_GATEWAY_SESSION"
	PolygonAPIKeyEnv   = "POLYGON_API_KEY"
)

func GetEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable not set", key)
	}

	return value, nil
}

// InitEnvironmentVariables loads .env.<goEnv> from envDir. Variables already
// set in the process environment win. A missing file is not an error in
// production, where the environment is provided by the host.
func InitEnvironmentVariables(envDir, goEnv string) error {
	envFile := filepath.Join(envDir, DEV_ENV_FILENAME)
	if goEnv == "production" {
		envFile = filepath.Join(envDir, PROD_ENV_FILENAME)
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if goEnv == "production" {
			log.Infof("no %s file, using the process environment", envFile)
			return nil
		}

		return fmt.Errorf("InitEnvironmentVariables: %s not found", envFile)
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("InitEnvironmentVariables: failed to load %s file: %w", envFile, err)
	}

	log.Debugf("loaded environment from %s", envFile)
	return nil
}

// ApplyEnvironment copies gateway endpoints and credentials from the
// environment into cfg. Unset variables keep the configured values.
func ApplyEnvironment(cfg *eventmodels.ScreenerConfig) {
	overrides := map[string]*string{
		GatewayURLEnv:      &cfg.Gateway.URL,
		GatewayPaperURLEnv: &cfg.Gateway.PaperURL,
		GatewaySessionEnv:  &cfg.Gateway.SessionToken,
		PolygonAPIKeyEnv:   &cfg.Historical.PolygonAPIKey,
	}

	for key, field := range overrides {
		if v, err := GetEnv(key); err == nil {
			*field = v
		}
	}
}

// LoadScreenerConfig reads the yaml config at path. A missing file yields the
// defaults when optional is set.
func LoadScreenerConfig(path string, optional bool) (*eventmodels.ScreenerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			log.Debugf("config %s not found, using defaults", path)
			return eventmodels.NewDefaultScreenerConfig(), nil
		}

		return nil, fmt.Errorf("LoadScreenerConfig: failed to read %s: %w", path, err)
	}

	cfg, err := eventmodels.ParseScreenerConfig(data)
	if err != nil {
		return nil, fmt.Errorf("LoadScreenerConfig: %s: %w", path, err)
	}

	return cfg, nil
}
