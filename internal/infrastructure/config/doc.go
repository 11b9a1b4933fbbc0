// Package config provides 12-factor configuration management for the portal.
//
// Configuration is assembled once at startup and handed to every component.
// Sources, lowest precedence first:
//   - Defaults (see Default)
//   - An optional YAML file named by PORTAL_CONFIG_FILE
//   - Environment variables (a .env file is loaded into the environment by main)
//
// Configuration Sections:
//   - Server: listen address, static asset directory, shutdown timeout
//   - Auth: shared secret for /api routes, optional terminal gate
//   - CORS: allowed origin(s)
//   - RateLimit: per-client budget for /api routes
//   - Weather: OpenWeather relay settings
//   - Email: Resend notification settings
//   - Controller: serial number and location shown in the UI and emails
//   - Proxy: flow editor upstream and path prefix
//   - Terminal: shell and home directory for terminal sessions
//   - Logging: level, format, optional rotating file, recent-log ring size
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
