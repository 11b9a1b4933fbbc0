/*
Package resilience guards calls to flaky upstreams with a circuit breaker.

The portal relays to OpenWeather and Resend. When a breaker is switched on
and its upstream keeps failing, it answers immediately with ErrCircuitOpen
instead of holding every dashboard poll for the full client timeout. Breakers
are off unless Settings.Threshold is positive; a disabled breaker lets every
call through.

# Usage

	breaker := resilience.New("openweather", resilience.Settings{
		Threshold: 3,
		Cooldown:  time.Minute,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit state changed", zap.String("upstream", name))
		},
	})

	report, err := resilience.Do(ctx, breaker, fetch)

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[success]-> Closed
	                                  ^                     |
	                                  +------[failure]------+
*/
package resilience
