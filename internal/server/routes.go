package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Chat views
	r.Route("/view", func(r chi.Router) {
		r.Get("/", s.listViews)
		r.Post("/", s.createViewHandler)

		r.Route("/{viewID}", func(r chi.Router) {
			r.Delete("/", s.closeView)
			r.Get("/transcript", s.getTranscript)
			r.Post("/message", s.submitMessage)
			r.Post("/recipe/{recipeID}", s.executeRecipe)
			r.Post("/abort", s.abort)
			r.Post("/reset", s.reset)
			r.Post("/restore", s.restore)
			r.Put("/editor", s.setEditor)
			r.Post("/suggestions", s.requestSuggestions)
			r.Delete("/history", s.clearHistory)
			r.Delete("/history/{chatID}", s.deleteHistory)
		})
	})

	// Shared state
	r.Get("/history", s.getHistory)
	r.Get("/recipe", s.listRecipes)
	r.Get("/plugin", s.listPlugins)
	r.Get("/config", s.getConfig)

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
