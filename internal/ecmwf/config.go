package ecmwf

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultURL is the root of the ECMWF web API.
const DefaultURL = "https://api.ecmwf.int/v1"

// Environment variables consulted by LoadConfig.
const (
	EnvURL   = "ECMWF_API_URL"
	EnvKey   = "ECMWF_API_KEY"
	EnvEmail = "ECMWF_API_EMAIL"
)

// Config holds the API location and credentials.
type Config struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Email string `json:"email"`
}

// DefaultRCPath returns the location of the credentials file used by the
// archive's reference client.
func DefaultRCPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecmwfapirc"
	}
	return filepath.Join(home, ".ecmwfapirc")
}

// LoadConfig resolves the API configuration. Values already set in cfg win,
// then the environment (optionally populated from envFile), then the JSON
// rc file at rcPath. A missing rc file is not an error.
func LoadConfig(cfg Config, envFile, rcPath string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, errors.Wrapf(err, "could not load env file %q", envFile)
		}
	}
	fill(&cfg, Config{
		URL:   os.Getenv(EnvURL),
		Key:   os.Getenv(EnvKey),
		Email: os.Getenv(EnvEmail),
	})

	if rcPath != "" && (cfg.Key == "" || cfg.Email == "") {
		rc, err := readRC(rcPath)
		if err != nil {
			return cfg, err
		}
		fill(&cfg, rc)
	}

	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Key == "" {
		return cfg, errors.Errorf("no API key: set %s or provide %s", EnvKey, rcPath)
	}
	return cfg, nil
}

func fill(dst *Config, src Config) {
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.Key == "" {
		dst.Key = src.Key
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
}

func readRC(path string) (Config, error) {
	var rc Config
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return rc, nil
	}
	if err != nil {
		return rc, errors.Wrap(err, "could not read API rc file")
	}
	if err := json.Unmarshal(b, &rc); err != nil {
		return rc, errors.Wrapf(err, "could not parse API rc file %q", path)
	}
	return rc, nil
}
