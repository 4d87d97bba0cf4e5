package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/approvisionnement/internal/platform/httpx"
)

// Handler serves reference data read-only.
type Handler struct {
	logger  *slog.Logger
	catalog Catalog
}

// NewHandler builds a catalog handler.
func NewHandler(logger *slog.Logger, cat Catalog) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, catalog: cat}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/articles", h.listArticles)
	r.Get("/articles/{id}", h.getArticle)
	r.Get("/fournisseurs", h.listSuppliers)
	r.Get("/fournisseurs/{id}", h.getSupplier)
}

func (h *Handler) listArticles(w http.ResponseWriter, r *http.Request) {
	var (
		articles []Article
		err      error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		articles, err = h.catalog.SearchArticles(r.Context(), term)
	} else {
		articles, err = h.catalog.Articles(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, articles)
}

func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.catalog.Article(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.catalog.Suppliers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.catalog.Supplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
