// Package main is the entry point of the application
package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (app *application) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,

		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			return origin == "" || app.Config.OriginAllowed(origin)
		},
	}
}

// handleWebSocket handles WebSocket connections
func (app *application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	ws, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Error("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	conn := app.Hub.Accept(ws)

	app.Logger.Info("WebSocket connection established",
		zap.String("connection_id", conn.ID()),
		zap.String("remote_addr", r.RemoteAddr))
}
