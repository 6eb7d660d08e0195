package tool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWeatherSchemaIsStrict(t *testing.T) {
	schema := NewWeather().Schema()
	require.Equal(t, "get_weather", schema.Name)
	require.True(t, schema.Strict)
	require.True(t, gjson.ValidBytes(schema.Parameters))
	require.False(t, gjson.GetBytes(schema.Parameters, "additionalProperties").Bool())
	required := gjson.GetBytes(schema.Parameters, "required").Array()
	require.Len(t, required, 2)
	require.Equal(t, "latitude", required[0].String())
	require.Equal(t, "longitude", required[1].String())
}

func TestWeatherCallPassesCoordinates(t *testing.T) {
	var calls [][2]float64
	weather := NewWeather()
	weather.lookup = func(_ context.Context, latitude, longitude float64) (string, error) {
		calls = append(calls, [2]float64{latitude, longitude})
		return "20.5", nil
	}
	out, err := weather.Call(context.Background(), `{"latitude":35.682839,"longitude":139.759455}`)
	require.NoError(t, err)
	require.Equal(t, "20.5", out)
	require.Equal(t, [][2]float64{{35.682839, 139.759455}}, calls)
}

func TestWeatherCallRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantParse bool
	}{
		{name: "truncated", args: `{"latitude":35.68`, wantParse: true},
		{name: "string coordinate", args: `{"latitude":"35.68","longitude":139.75}`},
		{name: "missing longitude", args: `{"latitude":35.68}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weather := NewWeather()
			weather.lookup = func(context.Context, float64, float64) (string, error) {
				t.Fatal("lookup must not be called")
				return "", nil
			}
			_, err := weather.Call(context.Background(), tt.args)
			require.Error(t, err)
			var parseErr *llm.ParseError
			require.Equal(t, tt.wantParse, errors.As(err, &parseErr))
		})
	}
}

func TestWeatherFetchesCurrentTemperature(t *testing.T) {
	var path string
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.Query()
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"latitude":35.7,"longitude":139.75,"current":{"time":"2026-10-19T12:00","temperature_2m":20.5}}`))
	}))
	defer server.Close()
	weather := NewWeather().SetBaseURL(server.URL).SetHTTPClient(server.Client())
	out, err := weather.Call(context.Background(), `{"latitude":35.682839,"longitude":139.759455}`)
	require.NoError(t, err)
	require.Equal(t, "20.5", out)
	require.Equal(t, "/v1/forecast", path)
	require.Equal(t, "35.682839", query.Get("latitude"))
	require.Equal(t, "139.759455", query.Get("longitude"))
	require.Equal(t, "temperature_2m", query.Get("current"))
}

func TestWeatherErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr any
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":true}`, wantErr: &llm.TransportError{}},
		{name: "malformed body", status: http.StatusOK, body: `{"current":`, wantErr: &llm.ParseError{}},
		{name: "missing temperature", status: http.StatusOK, body: `{"current":{}}`, wantErr: &llm.ParseError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()
			weather := NewWeather().SetBaseURL(server.URL).SetHTTPClient(server.Client())
			_, err := weather.Call(context.Background(), `{"latitude":1,"longitude":2}`)
			require.Error(t, err)
			switch tt.wantErr.(type) {
			case *llm.TransportError:
				var target *llm.TransportError
				require.ErrorAs(t, err, &target)
			case *llm.ParseError:
				var target *llm.ParseError
				require.ErrorAs(t, err, &target)
			}
		})
	}
}

func TestWeatherUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	weather := NewWeather().SetBaseURL(server.URL)
	_, err := weather.Call(context.Background(), `{"latitude":1,"longitude":2}`)
	var target *llm.TransportError
	require.ErrorAs(t, err, &target)
}
