// Package main is the entry point of the application
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/repository"
)

const (
	defaultGamesLimit = 20
	maxGamesLimit     = 100
)

// handleListGames handles GET /games, newest first
func (app *application) handleListGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultGamesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxGamesLimit)
	}

	games, err := app.Repository.ListGames(r.Context(), limit)
	if err != nil {
		app.Logger.Error("list games", zap.Error(err))
		http.Error(w, "failed to list games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []*game.Record{}
	}

	app.writeJSON(w, http.StatusOK, games)
}

// handleGetGame handles GET /games/{id}
func (app *application) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	record, err := app.Repository.GetGame(r.Context(), id)
	if errors.Is(err, repository.ErrGameNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		app.Logger.Error("get game", zap.String("game_id", id.String()), zap.Error(err))
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return
	}

	app.writeJSON(w, http.StatusOK, record)
}

func (app *application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Warn("write response", zap.Error(err))
	}
}
