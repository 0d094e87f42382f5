package tagengine

import "go.uber.org/zap"

// logger is the package-wide structured logger (§1.1 of SPEC_FULL.md). It
// defaults to a no-op sink so library embedders see no output unless they
// opt in via SetLogger, matching the teacher's posture of a library with
// no logging side effects by default.
var logger = zap.NewNop().Sugar()

// SetLogger installs l as the engine's logger. Passing nil restores the
// no-op default. BestAttempt/Relaxed anomalies (§4.17) are reported via
// Warnw; nothing below Warn is ever logged by this module.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		logger = zap.NewNop().Sugar()
		return
	}
	logger = l
}

func warnAnomaly(mode ParsingMode, msg string, kv ...interface{}) {
	if mode == Strict {
		return
	}
	logger.Warnw(msg, kv...)
}
