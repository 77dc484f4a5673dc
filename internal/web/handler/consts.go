package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the root path inside a route group.
	RouterRootPath = "/"

	// ErrNilACSFatalLogMsg is used if app or cfg or source var pointer is nil.
	ErrNilACSFatalLogMsg = "app, cfg or source is nil"
)
