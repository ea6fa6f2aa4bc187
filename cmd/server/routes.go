// Package main is the entry point of the application
package main

import (
	"net/http"

	"github.com/rs/cors"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", app.handleHealth)
	mux.HandleFunc("/ws", app.authenticate(app.handleWebSocket))
	mux.HandleFunc("GET /games", app.authenticate(app.handleListGames))
	mux.HandleFunc("GET /games/{id}", app.authenticate(app.handleGetGame))

	c := cors.New(cors.Options{
		AllowOriginFunc: app.Config.OriginAllowed,
		AllowedMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:  []string{"X-Api-Key", "Content-Type"},
	})

	return c.Handler(mux)
}
