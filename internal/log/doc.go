// Package log provides slog loggers that mask proxy credentials.
//
// SecureHandler wraps another slog.Handler and rewrites attributes before
// they are written:
//   - keys such as password, uuid, psk or token are always masked
//   - share links (vmess://, ss://, ...) and UUIDs are masked by value
//   - http(s) URLs keep scheme, host and path but lose userinfo and query
//     values, so a failing subscription stays identifiable without leaking
//     its access token
//
// Masking applies at every level, including debug output.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
