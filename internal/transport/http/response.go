package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// Envelope wraps every successful JSON response.
type Envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Status: "success", Data: data})
}
