// Package log provides slog loggers that never print secrets.
//
// SecureHandler wraps any slog.Handler. It masks values logged under
// sensitive keys (cookie, authorization, token, ...), values shaped like
// credentials (JWTs, bearer and basic auth, long opaque keys), and the
// sensitive query parameters and userinfo of logged URLs. Header maps are
// expanded into groups so each header is judged by its own name.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Info("beacon hit",
//	    "url", "/t.png?sid=abc",    // logged as /t.png?sid=REDACTED
//	    "headers", r.Header,        // Cookie and Authorization masked
//	)
package log
