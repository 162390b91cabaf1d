package hashes

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// WithLogging wraps d so every command is logged at debug level with its
// database, key, duration and error. The reply and error are passed
// through untouched.
func WithLogging(d Dispatcher, logger zerolog.Logger) Dispatcher {
	return DispatcherFunc(func(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error) {
		start := time.Now()
		reply, err := d.Dispatch(ctx, command, db, key, args...)

		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("cmd", command).
			Int("db", db).
			Str("key", key).
			Int("args", len(args)).
			Dur("took", time.Since(start)).
			Msg("dispatch")

		return reply, err
	})
}
