package emit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogEmitter implements Emitter by writing structured log entries through zap.
//
// Step events are logged at debug level, run boundaries at info, failures at
// warn (node) or error (run). Meta keys become individual fields.
//
// Example output (production JSON encoder):
//
//	{"level":"info","msg":"run_complete","thread_id":"t-1","run_id":"...","step":9,"node_id":""}
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter creates a LogEmitter. A nil logger falls back to zap.NewNop.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger.Named("engine")}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, 4+len(event.Meta))
	fields = append(fields,
		zap.String("thread_id", event.ThreadID),
		zap.String("run_id", event.RunID),
		zap.Int("step", event.Step),
		zap.String("node_id", event.NodeID),
	)
	for k, v := range event.Meta {
		fields = append(fields, zap.Any(k, v))
	}

	if ce := l.logger.Check(levelFor(event), event.Msg); ce != nil {
		ce.Write(fields...)
	}
}

func levelFor(event Event) zapcore.Level {
	switch event.Msg {
	case MsgStepComplete:
		return zapcore.DebugLevel
	case MsgNodeError:
		return zapcore.WarnLevel
	case MsgRunFailed:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
