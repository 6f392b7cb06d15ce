package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orderdesk/backend/internal/domain"
	"github.com/orderdesk/backend/internal/usecase"
	"github.com/rs/zerolog/log"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	workflowService *usecase.WorkflowService
	matchingService *usecase.MatchingService
}

// NewHandler creates a new HTTP handler
func NewHandler(workflowService *usecase.WorkflowService, matchingService *usecase.MatchingService) *Handler {
	return &Handler{
		workflowService: workflowService,
		matchingService: matchingService,
	}
}

// MatchRequest asks for the best candidate for a target product name
type MatchRequest struct {
	Target              string                  `json:"target"`
	Candidates          []domain.MatchCandidate `json:"candidates"`
	SimilarityThreshold *float64                `json:"similarityThreshold,omitempty" binding:"omitempty,gt=0,lte=1"`
	OverlapThreshold    *float64                `json:"overlapThreshold,omitempty" binding:"omitempty,gt=0,lte=1"`
}

// RunMatchRequest asks for the line item of an order that matches product
type RunMatchRequest struct {
	OrderID    string                  `json:"orderId" binding:"required"`
	Product    string                  `json:"product"`
	Candidates []domain.MatchCandidate `json:"candidates"`
}

// MatchResponse is the outcome of a match request; no match is still a 200
type MatchResponse struct {
	Matched   bool                   `json:"matched"`
	Method    domain.MatchMethod     `json:"method"`
	Score     float64                `json:"score"`
	Index     int                    `json:"index"`
	Candidate *domain.MatchCandidate `json:"candidate,omitempty"`
}

// StartRunResponse carries the new run and its work items
type StartRunResponse struct {
	Run  *domain.Run  `json:"run"`
	Plan *domain.Plan `json:"plan"`
}

func newMatchResponse(result domain.MatchResult) MatchResponse {
	resp := MatchResponse{
		Matched: result.Matched(),
		Method:  result.Method,
		Score:   result.Score,
		Index:   result.Index,
	}
	if result.Matched() {
		c := result.Candidate
		resp.Candidate = &c
	}
	return resp
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orderdesk-backend",
		"version": Version,
	})
}

// Match handles standalone product matching requests
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	similarity, overlap := h.matchingService.Thresholds()
	if req.SimilarityThreshold != nil {
		similarity = *req.SimilarityThreshold
	}
	if req.OverlapThreshold != nil {
		overlap = *req.OverlapThreshold
	}

	result, err := h.matchingService.FindBestMatchWith(c.Request.Context(), req.Target, req.Candidates, similarity, overlap)
	if err != nil && !errors.Is(err, domain.ErrNoMatch) {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(result))
}

// StartRun plans a workflow run from its worksheet
func (h *Handler) StartRun(c *gin.Context) {
	workflow, err := domain.ParseWorkflow(c.Param("workflow"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	run, plan, err := h.workflowService.StartRun(c.Request.Context(), workflow)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StartRunResponse{Run: run, Plan: plan})
}

// GetRun returns a run and its counters
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.workflowService.GetRun(c.Request.Context(), c.Param("runId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// MatchInRun matches a product against an order's line items within a run
func (h *Handler) MatchInRun(c *gin.Context) {
	var req RunMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.workflowService.MatchInRun(c.Request.Context(), c.Param("runId"), req.OrderID, req.Product, req.Candidates)
	if err != nil && !errors.Is(err, domain.ErrNoMatch) {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(result))
}

// RecordOutcome stores the result of one work item
func (h *Handler) RecordOutcome(c *gin.Context) {
	var outcome domain.Outcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	run, err := h.workflowService.RecordOutcome(c.Request.Context(), c.Param("runId"), outcome)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// FinishRun closes a run and posts its summary
func (h *Handler) FinishRun(c *gin.Context) {
	run, err := h.workflowService.FinishRun(c.Request.Context(), c.Param("runId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// respondError maps domain errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownWorkflow), errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRunFinished):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSheetFailure):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("component", "http").
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
