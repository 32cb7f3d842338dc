package mesh

import (
	pionlog "github.com/pion/logging"

	"github.com/BioHazard786/warpmesh/internal/logging"
)

// loggerFactory routes pion's internal logging into ours, tagged with the
// pion subsystem.
type loggerFactory struct {
	log *logging.Logger
}

func (f loggerFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return scopedLogger{log: f.log.Extend(f.log.With().Str("scope", scope))}
}

type scopedLogger struct {
	log *logging.Logger
}

func (l scopedLogger) Trace(msg string)                  { l.log.Trace().Msg(msg) }
func (l scopedLogger) Tracef(format string, args ...any) { l.log.Trace().Msgf(format, args...) }
func (l scopedLogger) Debug(msg string)                  { l.log.Debug().Msg(msg) }
func (l scopedLogger) Debugf(format string, args ...any) { l.log.Debug().Msgf(format, args...) }
func (l scopedLogger) Info(msg string)                   { l.log.Info().Msg(msg) }
func (l scopedLogger) Infof(format string, args ...any)  { l.log.Info().Msgf(format, args...) }
func (l scopedLogger) Warn(msg string)                   { l.log.Warn().Msg(msg) }
func (l scopedLogger) Warnf(format string, args ...any)  { l.log.Warn().Msgf(format, args...) }
func (l scopedLogger) Error(msg string)                  { l.log.Error().Msg(msg) }
func (l scopedLogger) Errorf(format string, args ...any) { l.log.Error().Msgf(format, args...) }
