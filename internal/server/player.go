package server

import (
	_ "embed"
	"net/http"
)

//go:embed assets/player.html
var playerHTML []byte

// PlayerHandler serves the authenticated web landing view.
type PlayerHandler struct{}

// Routes returns the HTTP routes this handler serves.
func (h *PlayerHandler) Routes() []string {
	return []string{"/player"}
}

func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(playerHTML)
}
