package core

// Logger is the app-wide structured logger.
// args may hold errors, map[string]interface{} extras, and at most one user.User (the request's person).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
