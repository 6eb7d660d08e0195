package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/markusylisiurunen/roundtrip/toolkit/tool"
	"gopkg.in/yaml.v3"
)

const DefaultModel = "gpt-4.1"

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	WeatherBaseURL string
	Debug          bool
}

type file struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Timeout        string `yaml:"timeout"`
	WeatherBaseURL string `yaml:"weather_base_url"`
	Debug          bool   `yaml:"debug"`
}

// Load reads .env from the working directory, then the YAML file at path (or $ROUNDTRIP_CONFIG
// when path is empty), then the environment. Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	cfg := &Config{
		BaseURL:        llm.DefaultOpenAIBaseURL,
		Model:          DefaultModel,
		Timeout:        llm.DefaultOpenAITimeout,
		WeatherBaseURL: tool.DefaultWeatherBaseURL,
	}
	if path == "" {
		path = os.Getenv("ROUNDTRIP_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.readEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	var v file
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error decoding config file %s: %w", path, err)
	}
	if v.Timeout != "" {
		timeout, err := time.ParseDuration(v.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in %s: %w", path, err)
		}
		c.Timeout = timeout
	}
	c.APIKey = or(v.APIKey, c.APIKey)
	c.BaseURL = or(v.BaseURL, c.BaseURL)
	c.Model = or(v.Model, c.Model)
	c.WeatherBaseURL = or(v.WeatherBaseURL, c.WeatherBaseURL)
	c.Debug = c.Debug || v.Debug
	return nil
}

func (c *Config) readEnv() error {
	c.APIKey = or(os.Getenv("OPENAI_API_KEY"), c.APIKey)
	c.BaseURL = or(os.Getenv("OPENAI_BASE_URL"), c.BaseURL)
	c.Model = or(os.Getenv("MODEL"), c.Model)
	c.WeatherBaseURL = or(os.Getenv("WEATHER_BASE_URL"), c.WeatherBaseURL)
	if v := os.Getenv("OPENAI_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OPENAI_TIMEOUT: %w", err)
		}
		c.Timeout = timeout
	}
	switch os.Getenv("DEBUG") {
	case "1", "true":
		c.Debug = true
	case "0", "false":
		c.Debug = false
	}
	return nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable is not set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
