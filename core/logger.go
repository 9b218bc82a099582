package core

// Logger is the operator-visible logging/alerting collaborator.
// Implementations may fan out to an error-reporting service in addition
// to the standard log; Fatal must exit the process after reporting.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
