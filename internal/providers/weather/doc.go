// Package weather relays current conditions from OpenWeather for the
// dashboard. The relay never returns an error to its caller: when it is
// disabled or the upstream call fails it answers with a fixed placeholder.
package weather
