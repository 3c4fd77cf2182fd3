package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"opsuite/pkg/authclient"
	"opsuite/pkg/export"
	"opsuite/pkg/listing"
	"opsuite/warehouse-service/internal/models"
)

type InventoryService interface {
	Create(ctx context.Context, actor authclient.Identity, in models.ItemInput) (*models.InventoryItem, error)
	Update(ctx context.Context, actor authclient.Identity, id string, in models.ItemInput) (*models.InventoryItem, error)
	Delete(ctx context.Context, actor authclient.Identity, id string) error
	Get(ctx context.Context, actor authclient.Identity, id string) (*models.InventoryItem, error)
	List(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.InventoryItem], error)
	Move(ctx context.Context, actor authclient.Identity, id string, in models.MovementInput) (*models.StockMovement, error)
	Movements(ctx context.Context, actor authclient.Identity, id string) ([]models.StockMovement, error)
	LowStock(ctx context.Context, actor authclient.Identity) ([]models.InventoryItem, error)
	Export(ctx context.Context, actor authclient.Identity, q listing.Query) ([]byte, error)
}

type InventoryHandler struct {
	service InventoryService
	log     *zap.Logger
}

func NewInventoryHandler(service InventoryService, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{service: service, log: log}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), identity(r), listing.ParseQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ItemInput
	if err := decode(w, r, &in); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	item, err := h.service.Create(r.Context(), identity(r), in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.ItemInput
	if err := decode(w, r, &in); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	item, err := h.service.Update(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	var in models.MovementInput
	if err := decode(w, r, &in); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	m, err := h.service.Move(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, m)
}

func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	moves, err := h.service.Movements(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, moves)
}

func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context(), identity(r))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Export(r.Context(), identity(r), listing.ParseQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	name := fmt.Sprintf("inventory_%s.xlsx", time.Now().UTC().Format("20060102"))
	attachment(w, name, export.ContentTypeXLSX, data)
}
