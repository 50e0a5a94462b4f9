package core

// Logger is any service that can log application events.
// expected args: error | map[string]interface{} | Actor
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the caller a log entry is about.
type Actor struct {
	ID       string
	Username string
	Email    string
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything (tests, CLI dry runs).
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
