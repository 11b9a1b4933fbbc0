package weather

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/resilience"
	"github.com/AutomataNexus/remote-portal/internal/shared/httpclient"
	"go.uber.org/zap"
)

// Report is the response of /api/weather. The optional fields are only
// present when the upstream lookup succeeded.
type Report struct {
	Temperature   int      `json:"temperature"`
	Condition     string   `json:"condition"`
	Humidity      int      `json:"humidity"`
	Location      string   `json:"location"`
	Icon          string   `json:"icon"`
	WindSpeed     *int     `json:"windSpeed,omitempty"`
	WindDirection *float64 `json:"windDirection,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	FeelsLike     *int     `json:"feelsLike,omitempty"`
}

// Placeholder values reported when the relay is off or the lookup failed.
const (
	PlaceholderTemperature = 72
	PlaceholderIcon        = "01d"
	DisabledCondition      = "Weather Disabled"
	ErrorCondition         = "API Error"
	ErrorHumidity          = 65
	LocalLocation          = "Local"
)

var errNoConditions = errors.New("weather response has no conditions")

// Config configures the relay.
type Config struct {
	Enabled  bool
	Location string
	Units    string
	APIKey   string
	BaseURL  string
	// SiteLocation names the controller site in the disabled placeholder.
	SiteLocation string
	// RatePerSecond caps calls to OpenWeather; zero means unlimited.
	RatePerSecond float64
	// Breaker stops lookups for a while after repeated upstream failures.
	// The zero value leaves every lookup going upstream.
	Breaker resilience.Settings
}

// OutcomeRecorder counts lookup outcomes.
type OutcomeRecorder interface {
	RecordWeather(outcome string)
}

// Service relays current conditions from OpenWeather.
type Service struct {
	cfg      Config
	client   *httpclient.Client
	breaker  *resilience.Breaker
	logger   *zap.Logger
	outcomes OutcomeRecorder
}

// NewService creates a weather relay. outcomes may be nil.
func NewService(cfg Config, logger *zap.Logger, outcomes OutcomeRecorder) *Service {
	settings := cfg.Breaker
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("weather circuit changed state",
				zap.String("upstream", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}

	client := httpclient.New(httpclient.Options{
		BaseURL:       cfg.BaseURL,
		RatePerSecond: cfg.RatePerSecond,
	})

	return &Service{
		cfg:      cfg,
		client:   client,
		breaker:  resilience.New("openweather", settings),
		logger:   logger,
		outcomes: outcomes,
	}
}

// Current returns the conditions for the configured location. It never
// fails: a disabled relay and any upstream problem both yield a placeholder.
func (s *Service) Current(ctx context.Context) *Report {
	if !s.cfg.Enabled {
		s.record("disabled")
		return Disabled(s.cfg.SiteLocation)
	}

	report, err := resilience.Do(ctx, s.breaker, s.fetch)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.Debug("weather lookup skipped, upstream circuit open")
		s.record("skipped")
		return Degraded()
	}
	if err != nil {
		s.logger.Error("weather lookup failed",
			zap.String("location", s.cfg.Location),
			zap.Error(err),
		)
		s.record("error")
		return Degraded()
	}

	s.record("ok")
	return report
}

// Disabled is the placeholder for a relay that is switched off.
func Disabled(siteLocation string) *Report {
	location := siteLocation
	if location == "" {
		location = LocalLocation
	}
	return &Report{
		Temperature: PlaceholderTemperature,
		Condition:   DisabledCondition,
		Humidity:    0,
		Location:    location,
		Icon:        PlaceholderIcon,
	}
}

// Degraded is the placeholder for a failed lookup.
func Degraded() *Report {
	return &Report{
		Temperature: PlaceholderTemperature,
		Condition:   ErrorCondition,
		Humidity:    ErrorHumidity,
		Location:    LocalLocation,
		Icon:        PlaceholderIcon,
	}
}

// owmResponse is the subset of the OpenWeather current weather payload we read.
type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
		Icon string `json:"icon"`
	} `json:"weather"`
	Wind *struct {
		Speed float64  `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
}

func (s *Service) fetch(ctx context.Context) (*Report, error) {
	req, err := s.client.Request(ctx)
	if err != nil {
		return nil, err
	}

	var body owmResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"q":     s.cfg.Location,
			"units": s.cfg.Units,
			"appid": s.cfg.APIKey,
		}).
		SetResult(&body).
		Get("/weather")
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather request: upstream status %d", resp.StatusCode())
	}
	if len(body.Weather) == 0 {
		return nil, errNoConditions
	}

	feelsLike := round(body.Main.FeelsLike)
	pressure := body.Main.Pressure
	report := &Report{
		Temperature: round(body.Main.Temp),
		Condition:   body.Weather[0].Main,
		Humidity:    int(body.Main.Humidity),
		Location:    body.Name,
		Icon:        body.Weather[0].Icon,
		Pressure:    &pressure,
		FeelsLike:   &feelsLike,
	}
	if body.Wind != nil {
		speed := round(body.Wind.Speed)
		report.WindSpeed = &speed
		report.WindDirection = body.Wind.Deg
	}
	return report, nil
}

func (s *Service) record(outcome string) {
	if s.outcomes != nil {
		s.outcomes.RecordWeather(outcome)
	}
}

func round(v float64) int {
	// JavaScript Math.round: halves go up, also for negatives.
	return int(math.Floor(v + 0.5))
}
