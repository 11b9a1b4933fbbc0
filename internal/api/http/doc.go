// Package http provides the REST handlers of the portal.
//
// Handlers depend on small interfaces (MetricsProbe, WeatherSource, Notifier,
// SessionLister, LogSource) so routes can be tested with fakes. Access
// control and rate limiting are applied by the router, not here.
//
// Routes:
//   - GET  /health
//   - GET  /api/system-info
//   - GET  /api/weather
//   - POST /api/notifications
//   - GET  /api/logs?limit=N&level=L
//   - POST /api/logs (client-side error reports)
//   - GET  /api/config
package http
