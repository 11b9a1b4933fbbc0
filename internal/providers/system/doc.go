// Package system collects the controller health snapshot served by
// /api/system-info.
//
// Readings come from vcgencmd, free, df and top, run through a Runner so they
// can be faked in tests. Uptime and the CPU usage fallback come from gopsutil.
// A command that fails leaves a sentinel in its fields ("N/A" or zero) rather
// than failing the whole snapshot.
package system
