package session

// State is the authentication lifecycle state.
type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
	StateTokenExpired
	StateReLoggingIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedIn:
		return "logged_in"
	case StateTokenExpired:
		return "token_expired"
	case StateReLoggingIn:
		return "re_logging_in"
	default:
		return "unknown"
	}
}
