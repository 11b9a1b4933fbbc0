package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type outcomes struct {
	seen []string
}

func (o *outcomes) RecordWeather(outcome string) { o.seen = append(o.seen, outcome) }

const owmBody = `{
  "name": "Austin",
  "main": {"temp": 71.6, "feels_like": 70.5, "humidity": 40, "pressure": 1015},
  "weather": [{"main": "Clouds", "icon": "04d"}],
  "wind": {"speed": 5.4, "deg": 180}
}`

func TestCurrent(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(owmBody))
	}))
	defer srv.Close()

	rec := &outcomes{}
	svc := NewService(Config{
		Enabled:  true,
		Location: "Austin,US",
		Units:    "imperial",
		APIKey:   "ow-key",
		BaseURL:  srv.URL,
	}, zap.NewNop(), rec)

	report := svc.Current(context.Background())

	assert.Equal(t, 72, report.Temperature)
	assert.Equal(t, "Clouds", report.Condition)
	assert.Equal(t, 40, report.Humidity)
	assert.Equal(t, "Austin", report.Location)
	assert.Equal(t, "04d", report.Icon)
	require.NotNil(t, report.WindSpeed)
	assert.Equal(t, 5, *report.WindSpeed)
	require.NotNil(t, report.WindDirection)
	assert.Equal(t, 180.0, *report.WindDirection)
	require.NotNil(t, report.Pressure)
	assert.Equal(t, 1015.0, *report.Pressure)
	require.NotNil(t, report.FeelsLike)
	assert.Equal(t, 71, *report.FeelsLike)

	assert.Equal(t, "Austin,US", query.Get("q"))
	assert.Equal(t, "imperial", query.Get("units"))
	assert.Equal(t, "ow-key", query.Get("appid"))
	assert.Equal(t, []string{"ok"}, rec.seen)
}

func TestCurrentDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tests := []struct {
		name         string
		cfg          Config
		wantLocation string
	}{
		{
			name:         "site location",
			cfg:          Config{SiteLocation: "Boiler Room", APIKey: "ow-key", BaseURL: srv.URL, Location: "Austin,US"},
			wantLocation: "Boiler Room",
		},
		{
			name:         "no site location",
			cfg:          Config{BaseURL: srv.URL},
			wantLocation: "Local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewService(tt.cfg, zap.NewNop(), nil).Current(context.Background())

			assert.Equal(t, &Report{
				Temperature: 72,
				Condition:   "Weather Disabled",
				Humidity:    0,
				Location:    tt.wantLocation,
				Icon:        "01d",
			}, report)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestCurrentDegraded(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
			},
		},
		{
			name: "empty conditions",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"name":"Austin","main":{"temp":70},"weather":[]}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rec := &outcomes{}
			svc := NewService(Config{Enabled: true, BaseURL: srv.URL}, zap.NewNop(), rec)

			report := svc.Current(context.Background())
			assert.Equal(t, Degraded(), report)
			assert.Equal(t, []string{"error"}, rec.seen)
		})
	}
}

func TestCurrentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewService(Config{Enabled: true, BaseURL: url}, zap.NewNop(), nil)
	assert.Equal(t, Degraded(), svc.Current(context.Background()))
}

func TestReportJSONOmitsOptionalFields(t *testing.T) {
	data, err := json.Marshal(Degraded())
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":72,"condition":"API Error","humidity":65,"location":"Local","icon":"01d"}`, string(data))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 3, round(2.5))
	assert.Equal(t, 2, round(2.49))
	assert.Equal(t, -2, round(-2.5))
}

func TestCurrentSkipsWhileCircuitOpenWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &outcomes{}
	svc := NewService(Config{
		Enabled: true,
		BaseURL: srv.URL,
		Breaker: resilience.Settings{Threshold: 2, Cooldown: time.Hour},
	}, zap.NewNop(), rec)

	for i := 0; i < 4; i++ {
		assert.Equal(t, Degraded(), svc.Current(context.Background()))
	}

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []string{"error", "error", "skipped", "skipped"}, rec.seen)
}

func TestCurrentCallsUpstreamEveryTimeByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &outcomes{}
	svc := NewService(Config{Enabled: true, BaseURL: srv.URL}, zap.NewNop(), rec)

	for i := 0; i < 8; i++ {
		assert.Equal(t, Degraded(), svc.Current(context.Background()))
	}

	assert.EqualValues(t, 8, calls.Load())
	assert.NotContains(t, rec.seen, "skipped")
}
