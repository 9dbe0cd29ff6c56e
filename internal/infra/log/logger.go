package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog. Отладочный уровень включается в dev
// окружении или флагом debug.
func NewLogger(appEnv string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" || debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
