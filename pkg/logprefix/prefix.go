package logprefix

import "github.com/cyclopcam/logs"

// Logger writes to the underlying log, but all messages are prefixed with a string of your choice.
// Each pipeline component gets its own prefix, eg "orchestrator: ", so that interleaved
// lines from the same process can be told apart.
type Logger struct {
	Log    logs.Log
	Prefix string
}

// Create a new prefix logger. A trailing ": " is appended to prefix.
func New(log logs.Log, prefix string) *Logger {
	return NewNoSeparator(log, prefix+": ")
}

// Create a new prefix logger, but don't add a separator onto 'prefix'
func NewNoSeparator(log logs.Log, prefix string) *Logger {
	return &Logger{
		Log:    log,
		Prefix: prefix,
	}
}

func (l *Logger) Close() {
	l.Log.Close()
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.Log.Debugf(l.Prefix+format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.Log.Infof(l.Prefix+format, a...)
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.Log.Warnf(l.Prefix+format, a...)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.Log.Errorf(l.Prefix+format, a...)
}

func (l *Logger) Criticalf(format string, a ...interface{}) {
	l.Log.Criticalf(l.Prefix+format, a...)
}
