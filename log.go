package splice

import "github.com/tliron/commonlog"

// Logger is the diagnostics sink. It is satisfied by commonlog.Logger.
type Logger interface {
	Debug(message string, keysAndValues ...any)
	Info(message string, keysAndValues ...any)
	Warning(message string, keysAndValues ...any)
	Error(message string, keysAndValues ...any)
}

// defaultLogger is looked up when a driver is created rather than at init
// so that a backend configured by main is picked up.
func defaultLogger() Logger {
	return commonlog.GetLogger("splice")
}

// log returns d.Log, or the default logger for a driver built without
// NewDriver.
func (d *Driver) log() Logger {
	if d.Log == nil {
		return defaultLogger()
	}
	return d.Log
}
