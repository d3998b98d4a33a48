// Package attr builds slog attributes with consistent keys.
package attr

import (
	"context"
	"log/slog"
	"time"
)

type correlationKey struct{}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Float(key string, value float64) slog.Attr { return slog.Float64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Time(key string, value time.Time) slog.Attr { return slog.Time(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

// Error records err under "error". A nil error logs as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Leaderboard records a leaderboard key in its string form.
func Leaderboard(key interface{ String() string }) slog.Attr {
	return slog.String("leaderboard", key.String())
}

// WithCorrelationID stores a correlation ID for later log lines.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExtractCorrelationID returns the correlation ID stored on ctx, or an empty
// attribute when there is none.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return slog.String("correlation_id", id)
	}
	return slog.Attr{}
}
