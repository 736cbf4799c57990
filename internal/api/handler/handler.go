package handler

import (
	"tickethub/backend/internal/auth"
	"tickethub/backend/internal/chathub"
	"tickethub/backend/internal/storage"
)

// Handler містить посилання на Gateway та колаборатори
type Handler struct {
	Gateway  *chathub.Gateway
	Verifier *auth.Verifier
	Storage  storage.Storage
}

func NewHandler(gw *chathub.Gateway, verifier *auth.Verifier, s storage.Storage) *Handler {
	return &Handler{Gateway: gw, Verifier: verifier, Storage: s}
}
