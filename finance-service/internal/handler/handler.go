package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"opsuite/finance-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/export"
	"opsuite/pkg/listing"
	"opsuite/pkg/storage"
)

type FinanceHandler struct {
	service *services.FinanceService
}

func NewFinanceHandler(service *services.FinanceService) *FinanceHandler {
	return &FinanceHandler{service: service}
}

type reviewBody struct {
	Note string `json:"note" binding:"max=1000"`
}

// note reads the optional review note. An empty body is allowed.
func note(c *gin.Context) (string, bool) {
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return "", false
	}
	return body.Note, true
}

// receipt returns the optional "receipt" file of a multipart request.
func receipt(c *gin.Context) (*services.Upload, error) {
	fh, err := c.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &services.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}, nil
}

func limitUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+(1<<20))
}

func query(c *gin.Context) listing.Query {
	return listing.ParseQuery(c.Request.URL.Query())
}

func reply[T any](c *gin.Context, status int, v T, err error) {
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(status, v)
}

func attachment(c *gin.Context, name string, data []byte, err error) {
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, data)
}
