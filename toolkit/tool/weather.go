package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/tidwall/gjson"
)

const (
	DefaultWeatherBaseURL = "https://api.open-meteo.com"
	weatherTimeout        = 30 * time.Second
)

var weatherToolDescription = strings.TrimSpace(`
Get the current temperature in degrees Celsius for the provided coordinates.
`)

var _ llm.Tool = (*weatherTool)(nil)

type weatherTool struct {
	logger  logger.Logger
	client  *http.Client
	baseURL string
	lookup  func(ctx context.Context, latitude, longitude float64) (string, error)
}

func NewWeather() *weatherTool {
	t := &weatherTool{
		logger:  logger.NoOp(),
		client:  &http.Client{Timeout: weatherTimeout},
		baseURL: DefaultWeatherBaseURL,
	}
	t.lookup = t.currentTemperature
	return t
}

func (t *weatherTool) SetLogger(logger logger.Logger) *weatherTool {
	t.logger = logger
	return t
}

func (t *weatherTool) SetBaseURL(baseURL string) *weatherTool {
	if baseURL != "" {
		t.baseURL = strings.TrimRight(baseURL, "/")
	}
	return t
}

func (t *weatherTool) SetHTTPClient(client *http.Client) *weatherTool {
	t.client = client
	return t
}

func (t *weatherTool) Schema() llm.Schema {
	return llm.Schema{
		Name:        "get_weather",
		Description: weatherToolDescription,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"latitude": {
					"type": "number"
				},
				"longitude": {
					"type": "number"
				}
			},
			"required": ["latitude", "longitude"],
			"additionalProperties": false
		}`),
		Strict: true,
	}
}

func (t *weatherTool) Call(ctx context.Context, args string) (string, error) {
	if !gjson.Valid(args) {
		return "", &llm.ParseError{What: "get_weather arguments", Input: args}
	}
	latitude, longitude := gjson.Get(args, "latitude"), gjson.Get(args, "longitude")
	if latitude.Type != gjson.Number || longitude.Type != gjson.Number {
		return "", fmt.Errorf("latitude and longitude must be numbers, got %s", args)
	}
	return t.lookup(ctx, latitude.Float(), longitude.Float())
}

// currentTemperature returns temperature_2m exactly as the forecast API printed it.
func (t *weatherTool) currentTemperature(ctx context.Context, latitude, longitude float64) (string, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("current", "temperature_2m")
	endpoint := t.baseURL + "/v1/forecast?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	t.logger.Debug("fetching forecast from %s", endpoint)
	resp, err := t.client.Do(req)
	if err != nil {
		return "", &llm.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.TransportError{Endpoint: endpoint, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &llm.TransportError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("non-ok status (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	if !gjson.ValidBytes(body) {
		return "", &llm.ParseError{What: "forecast response", Input: string(body)}
	}
	temperature := gjson.GetBytes(body, "current.temperature_2m")
	if temperature.Type != gjson.Number {
		return "", &llm.ParseError{What: "current.temperature_2m", Input: string(body)}
	}
	t.logger.Debug("current temperature at %v,%v is %s", latitude, longitude, temperature.Raw)
	return temperature.Raw, nil
}
