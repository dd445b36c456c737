package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/import", h.Import)
	r.Get("/{voucherNumber}", h.Get)
	r.Patch("/{voucherNumber}", h.UpdateHeader)
	r.Delete("/{voucherNumber}", h.Delete)
}
