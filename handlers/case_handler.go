package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"casestatus-backend/models"
	"casestatus-backend/repository"
	"casestatus-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CaseFetcher runs case lookups
type CaseFetcher interface {
	FetchCase(ctx context.Context, req service.FetchCaseRequest) (*service.FetchCaseResult, error)
}

// LookupReader reads lookup audit records
type LookupReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lookup, error)
}

// CaseHandler handles HTTP requests for case lookups
type CaseHandler struct {
	fetcher     CaseFetcher
	lookups     LookupReader
	hideDetails bool
}

// NewCaseHandler creates a new case handler. lookups may be nil when no
// database is configured.
func NewCaseHandler(fetcher CaseFetcher, lookups LookupReader, hideDetails bool) *CaseHandler {
	return &CaseHandler{
		fetcher:     fetcher,
		lookups:     lookups,
		hideDetails: hideDetails,
	}
}

// RegisterRoutes mounts the case endpoints on r
func (h *CaseHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/fetch-case", h.FetchCase)

	api := r.Group("/api")
	{
		api.POST("/cases/fetch", h.FetchCase)
		api.GET("/lookups/:id", h.GetLookup)
	}
}

// FetchCaseRequest represents the request body for fetching a case
type FetchCaseRequest struct {
	CourtComplex string `json:"courtComplex"`
	CaseType     string `json:"caseType"`
	CaseNumber   string `json:"caseNumber"`
	CaseYear     string `json:"caseYear"`
}

// FetchCase handles POST /fetch-case
func (h *CaseHandler) FetchCase(c *gin.Context) {
	var req FetchCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	query := models.CaseQuery(req)
	if err := query.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required fields",
		})
		return
	}

	result, err := h.fetcher.FetchCase(c.Request.Context(), service.FetchCaseRequest{Query: query})
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	c.Header("X-Lookup-ID", result.LookupID.String())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Case,
	})
}

func (h *CaseHandler) respondFetchError(c *gin.Context, err error) {
	var pe *service.PipelineError
	if !errors.As(err, &pe) {
		log.Printf("ERROR: case lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, h.errorBody("An error occurred while fetching case details", err))
		return
	}

	if pe.Kind == service.KindValidation {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": pe.UserMessage(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, h.errorBody(pe.UserMessage(), pe))
}

func (h *CaseHandler) errorBody(summary string, err error) gin.H {
	body := gin.H{"error": summary}
	if !h.hideDetails {
		body["details"] = err.Error()
	}
	return body
}

// GetLookup handles GET /api/lookups/:id
func (h *CaseHandler) GetLookup(c *gin.Context) {
	if h.lookups == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUDIT_DISABLED",
				"message": "Lookup history requires a database",
			},
		})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid lookup ID format",
			},
		})
		return
	}

	lookup, err := h.lookups.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrLookupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Lookup not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    lookup,
	})
}
