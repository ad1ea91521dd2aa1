// Package web embeds the browser surface. The page is self-contained: it
// reads the session id from its own URL and talks to the session API and
// stream endpoints directly.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
