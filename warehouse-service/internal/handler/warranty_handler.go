package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/warehouse-service/internal/models"
)

type WarrantyService interface {
	Create(ctx context.Context, actor authclient.Identity, in models.WarrantyInput) (*models.Warranty, error)
	Update(ctx context.Context, actor authclient.Identity, id string, in models.WarrantyInput) (*models.Warranty, error)
	Delete(ctx context.Context, actor authclient.Identity, id string) error
	Get(ctx context.Context, actor authclient.Identity, id string) (*models.Warranty, error)
	List(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Warranty], error)
	AddClaim(ctx context.Context, actor authclient.Identity, id string, in models.ClaimInput) (*models.Warranty, error)
	UpdateClaim(ctx context.Context, actor authclient.Identity, id, claimID string, in models.ClaimUpdate) (*models.Warranty, error)
}

type WarrantyHandler struct {
	service WarrantyService
	log     *zap.Logger
}

func NewWarrantyHandler(service WarrantyService, log *zap.Logger) *WarrantyHandler {
	return &WarrantyHandler{service: service, log: log}
}

// warrantyBody takes purchase_date as a string so plain dates are accepted.
type warrantyBody struct {
	ItemID        string `json:"item_id"`
	ProductName   string `json:"product_name"`
	SerialNumber  string `json:"serial_number"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	PurchaseDate  string `json:"purchase_date"`
	PeriodMonths  int    `json:"period_months"`
	Notes         string `json:"notes"`
}

func bindWarranty(w http.ResponseWriter, r *http.Request) (models.WarrantyInput, error) {
	var body warrantyBody
	if err := decode(w, r, &body); err != nil {
		return models.WarrantyInput{}, err
	}
	purchased, err := parseDate("purchase_date", body.PurchaseDate)
	if err != nil {
		return models.WarrantyInput{}, err
	}
	return models.WarrantyInput{
		ItemID:        body.ItemID,
		ProductName:   body.ProductName,
		SerialNumber:  body.SerialNumber,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		PurchaseDate:  purchased,
		PeriodMonths:  body.PeriodMonths,
		Notes:         body.Notes,
	}, nil
}

func (h *WarrantyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), identity(r), listing.ParseQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *WarrantyHandler) Get(w http.ResponseWriter, r *http.Request) {
	wr, err := h.service.Get(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *WarrantyHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := bindWarranty(w, r)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	wr, err := h.service.Create(r.Context(), identity(r), in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, wr)
}

func (h *WarrantyHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, err := bindWarranty(w, r)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	wr, err := h.service.Update(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *WarrantyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WarrantyHandler) AddClaim(w http.ResponseWriter, r *http.Request) {
	var in models.ClaimInput
	if err := decode(w, r, &in); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	wr, err := h.service.AddClaim(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, wr)
}

func (h *WarrantyHandler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	var in models.ClaimUpdate
	if err := decode(w, r, &in); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	vars := mux.Vars(r)
	wr, err := h.service.UpdateClaim(r.Context(), identity(r), vars["id"], vars["claimId"], in)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}
