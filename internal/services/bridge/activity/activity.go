// Package activity models embeddable learning units and their catalog.
package activity

import "strings"

// Activity identifies one embeddable content unit. It is supplied per
// render; the bridge never mutates it.
type Activity struct {
	ID     string `yaml:"id" json:"id"`
	Title  string `yaml:"title" json:"title"`
	Config Config `yaml:"config" json:"config"`
}

// Config locates the content for an activity.
type Config struct {
	// PackageURL points at the packaged content the backend mounts.
	PackageURL string `yaml:"packageUrl" json:"packageUrl,omitempty"`
	// LaunchURL is an already-resolved entry point that bypasses mounting.
	LaunchURL string `yaml:"launchUrl" json:"launchUrl,omitempty"`
}

// Launchable reports whether the activity has any content to render.
func (a Activity) Launchable() bool {
	return strings.TrimSpace(a.Config.PackageURL) != "" || strings.TrimSpace(a.Config.LaunchURL) != ""
}

// SameIdentity reports whether b is the same content unit as a.
func (a Activity) SameIdentity(b Activity) bool {
	return strings.TrimSpace(a.ID) == strings.TrimSpace(b.ID)
}
