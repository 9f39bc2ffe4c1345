// Package log builds the slog loggers used by wordspider.
//
// Every logger returned here is wrapped in a SecureHandler. Crawls often
// carry session cookies, bearer tokens and credentials embedded in proxy or
// target URLs, and those values must never reach a terminal or a saved log.
// The handler masks them by attribute key, by value shape, and strips the
// password from any URL-looking value.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Debug("request sent", "url", target, "cookie", cookie)
//	// cookie=***REDACTED***
package log
