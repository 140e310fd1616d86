// Package assets embeds static files shipped inside the binary.
package assets

import _ "embed"

// PlaceholderJPEG is the cover used when no candidate image resolves.
//
//go:embed placeholder.jpg
var PlaceholderJPEG []byte
