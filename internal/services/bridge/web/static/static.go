package static

import "embed"

// FS exposes the viewer page assets for HTTP serving.
//
//go:embed *.css *.js
var FS embed.FS
