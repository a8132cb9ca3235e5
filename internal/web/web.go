// Package web serves the relay's static landing page.
//
// The page is embedded so the binary stays self-contained; anything placed
// under static/ ships with it.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

// StaticHandler serves the embedded landing page at / and any other assets
// under static/.
type StaticHandler struct {
	fileServer http.Handler
}

// NewStaticHandler creates a StaticHandler over the embedded filesystem.
func NewStaticHandler() *StaticHandler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return &StaticHandler{fileServer: http.FileServer(http.FS(sub))}
}

// Routes returns the HTTP routes this handler serves.
func (h *StaticHandler) Routes() []string {
	return []string{"/"}
}

// ServeHTTP serves the embedded files.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.fileServer.ServeHTTP(w, r)
}
