package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"opsuite/inspection-service/internal/models"
	"opsuite/inspection-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/storage"
)

type InspectionHandler struct {
	service *services.InspectionService
}

func NewInspectionHandler(service *services.InspectionService) *InspectionHandler {
	return &InspectionHandler{service: service}
}

func (h *InspectionHandler) Create(c *gin.Context) {
	var in models.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req, err := h.service.Create(c.Request.Context(), authclient.FromGin(c), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *InspectionHandler) Update(c *gin.Context) {
	var in models.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req, err := h.service.Update(c.Request.Context(), authclient.FromGin(c), c.Param("id"), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), authclient.FromGin(c), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "inspection request deleted"})
}

func (h *InspectionHandler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) ListMine(c *gin.Context) {
	page, err := h.service.ListMine(c.Request.Context(), authclient.FromGin(c), listing.ParseQuery(c.Request.URL.Query()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *InspectionHandler) List(c *gin.Context) {
	page, err := h.service.List(c.Request.Context(), authclient.FromGin(c), listing.ParseQuery(c.Request.URL.Query()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *InspectionHandler) Submit(c *gin.Context) {
	req, err := h.service.Submit(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) ChangeStatus(c *gin.Context) {
	var body struct {
		Status models.Status `json:"status" binding:"required"`
		Note   string        `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	req, err := h.service.ChangeStatus(c.Request.Context(), authclient.FromGin(c), c.Param("id"), body.Status, body.Note)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) Assign(c *gin.Context) {
	var body struct {
		InspectorID string `json:"inspector_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inspector_id is required"})
		return
	}
	req, err := h.service.Assign(c.Request.Context(), authclient.FromGin(c), c.Param("id"), body.InspectorID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) Schedule(c *gin.Context) {
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be an RFC 3339 timestamp"})
		return
	}
	req, err := h.service.Schedule(c.Request.Context(), authclient.FromGin(c), c.Param("id"), body.ScheduledAt)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) Cancel(c *gin.Context) {
	var body struct {
		Note string `json:"note"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&body)
	req, err := h.service.Cancel(c.Request.Context(), authclient.FromGin(c), c.Param("id"), body.Note)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *InspectionHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+(1<<20))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	doc, err := h.service.AddDocument(c.Request.Context(), authclient.FromGin(c), c.Param("id"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file, fileHeader.Size)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *InspectionHandler) DocumentURL(c *gin.Context) {
	url, err := h.service.DocumentURL(c.Request.Context(), authclient.FromGin(c), c.Param("id"), c.Param("docId"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *InspectionHandler) TravelCost(c *gin.Context) {
	distance, err := decimal.NewFromString(c.Query("distance"))
	if err != nil || distance.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "distance must be a non-negative number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"distance_km": distance,
		"cost":        models.TravelCost(distance),
	})
}

func (h *InspectionHandler) Stats(c *gin.Context) {
	counts, err := h.service.Stats(c.Request.Context(), authclient.FromGin(c).TenantID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": services.OrderedCounts(counts)})
}

// PaymentCallback receives payment decisions from finance-service.
func (h *InspectionHandler) PaymentCallback(c *gin.Context) {
	var upd models.PaymentUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req, err := h.service.HandlePaymentStatus(c.Request.Context(), upd)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID.Hex(), "status": req.Status})
}
