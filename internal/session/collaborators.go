package session

// Notifier is the user-facing notification sink. Implementations decide
// presentation (toast, terminal line, log).
type Notifier interface {
	Success(message string)
	Error(message string)
	Warning(message string)
	Info(message string)
}

// Navigator moves the embedding UI between views and reports where it
// currently is.
type Navigator interface {
	Push(path string)
	Current() string
}

// TokenSource yields the bearer token to attach to outgoing requests, if
// one is present.
type TokenSource interface {
	Token() (string, bool)
}
