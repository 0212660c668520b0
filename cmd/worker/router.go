package main

import (
	"net/http"

	apimw "github.com/blogapp/summarizer/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter builds the control surface router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimw.Trace(app.logger))

	app.control.Routes(r)

	return r
}
