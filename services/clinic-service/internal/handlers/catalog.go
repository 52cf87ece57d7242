package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/storage"
)

type CatalogHandler struct {
	catalog *storage.CatalogRepository
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *storage.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type serviceItem struct {
	ServiceID       string  `json:"service_id"`
	Name            string  `json:"name"`
	CategoryID      string  `json:"category_id"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	IsActive        bool    `json:"is_active"`
	CreatedAt       string  `json:"created_at"`
}

type categoryItem struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

type createServiceRequest struct {
	Name            string  `json:"name"`
	CategoryID      string  `json:"category_id"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Services lists the bookable treatments, optionally filtered by category.
func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categoryID := strings.TrimSpace(r.URL.Query().Get("category_id"))
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	services, err := h.catalog.ListServices(r.Context(), categoryID, limit)
	if err != nil {
		h.logger.Error("failed to list services", "err", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}

	items := make([]serviceItem, 0, len(services))
	for _, svc := range services {
		items = append(items, serviceItem{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			CategoryID:      svc.CategoryID,
			Description:     svc.Description,
			DurationMinutes: svc.DurationMinutes,
			Price:           svc.Price,
			IsActive:        svc.IsActive,
			CreatedAt:       svc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateService adds a treatment to the catalog. Admin only.
func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if req.Name == "" || req.CategoryID == "" {
		http.Error(w, "name and category_id required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 || req.Price < 0 {
		http.Error(w, "invalid duration_minutes or price", http.StatusBadRequest)
		return
	}

	svc := model.Service{
		Name:            req.Name,
		CategoryID:      req.CategoryID,
		Description:     strings.TrimSpace(req.Description),
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		IsActive:        true,
	}
	if err := h.catalog.CreateService(r.Context(), &svc); err != nil {
		h.logger.Error("failed to create service", "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, serviceItem{
		ServiceID:       svc.ID,
		Name:            svc.Name,
		CategoryID:      svc.CategoryID,
		Description:     svc.Description,
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		IsActive:        svc.IsActive,
		CreatedAt:       svc.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Categories lists the service categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "err", err)
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}

	items := make([]categoryItem, 0, len(categories))
	for _, cat := range categories {
		items = append(items, categoryItem{
			CategoryID:  cat.ID,
			Name:        cat.Name,
			Description: cat.Description,
			IsActive:    cat.IsActive,
			CreatedAt:   cat.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateCategory adds a service category. Admin only.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	cat := model.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
	}
	if err := h.catalog.CreateCategory(r.Context(), &cat); err != nil {
		h.logger.Error("failed to create category", "err", err)
		http.Error(w, "failed to create category", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, categoryItem{
		CategoryID:  cat.ID,
		Name:        cat.Name,
		Description: cat.Description,
		IsActive:    cat.IsActive,
		CreatedAt:   cat.CreatedAt.UTC().Format(time.RFC3339),
	})
}
