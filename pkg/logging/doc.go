// Package logging provides the application-wide logging facility.
//
// It is a thin wrapper around log/slog that tags every entry with the
// subsystem that produced it and accepts printf-style message formatting.
// Call Init once at startup; the package-level Debug/Info/Warn/Error
// functions are safe to call from any goroutine afterwards.
package logging
