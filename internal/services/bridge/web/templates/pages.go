// Package templates renders the viewer page.
package templates

//go:generate templ generate

// ViewerPage is everything the viewer page shows before the socket connects.
type ViewerPage struct {
	Lang         string
	ActivityID   string
	Title        string
	SocketPath   string
	LaunchLabel  string
	CloseLabel   string
	DisabledText string
	CanLaunch    bool
}

// ErrorPage is a minimal page for errors raised before the viewer renders.
type ErrorPage struct {
	Lang    string
	Title   string
	Message string
}
