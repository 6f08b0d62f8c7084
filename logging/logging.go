package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers.
var (
	// AppLogger is the main app.App logger.
	AppLogger = zap.New(zapcore.NewNopCore())
	// DBLogger is used for stuff regarding the database connection.
	DBLogger = zap.New(zapcore.NewNopCore())
	// MQTTLogger is the logger for all MQTT stuff.
	MQTTLogger = zap.New(zapcore.NewNopCore())
)

// ApplyToGlobalLoggers sets the global loggers to named children of the given
// one.
func ApplyToGlobalLoggers(logger *zap.Logger) {
	AppLogger = logger.Named("app")
	DBLogger = logger.Named("db")
	MQTTLogger = logger.Named("mqtt")
}
