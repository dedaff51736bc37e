package server

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps the router for the unauthenticated public endpoints
// (public-info, songs/search, health) and the payment-gated duet routes
// that browser pages call directly. It allows the Payment-Signature request
// header and exposes Payment-Required and Payment-Response so client-side
// fetch() can read them. Grounded on the
// liverty-music-backend NewCORSHandler wrapping idiom, adapted from
// connectrpc's header helpers to the plain header list this surface needs.
func WithCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Bridge-Ticket", "Payment-Signature"},
		ExposedHeaders: []string{"Payment-Required", "Payment-Response"},
	}).Handler(h)
}
