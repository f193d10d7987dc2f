package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gobayes/app"
	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	apperrors "gobayes/internal/errors"
	"gobayes/internal/inference"
	"gobayes/internal/report"
	"gobayes/internal/worker"
	"gobayes/ports"
)

// FitHandler handles the /fits endpoints
type FitHandler struct {
	svc *app.FitService
}

// NewFitHandler creates a new fit handler
func NewFitHandler(svc *app.FitService) *FitHandler {
	return &FitHandler{svc: svc}
}

type createFitRequest struct {
	ModelType string              `json:"modelType" binding:"required"`
	Data      json.RawMessage     `json:"data" binding:"required"`
	Config    *domain.InputConfig `json:"config"`
	Options   domain.FitOptions   `json:"options"`
}

type sampleRequest struct {
	Count int    `json:"count" binding:"required,min=1,max=100000"`
	Seed  uint64 `json:"seed"`
}

type fitResponse struct {
	ID          core.FitID          `json:"id"`
	ModelType   domain.ModelType    `json:"modelType"`
	Diagnostics domain.Diagnostics  `json:"diagnostics"`
	Summary     domain.Summary      `json:"summary"`
	DataHash    core.Hash           `json:"dataHash,omitempty"`
	CreatedAt   *core.Timestamp     `json:"createdAt,omitempty"`
	Posterior   *inference.Snapshot `json:"posterior,omitempty"`
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	status := apperrors.HTTPStatus(appErr.Code)
	message := appErr.Error()
	if status >= http.StatusInternalServerError && appErr.Code != apperrors.CodeTimeout {
		message = "internal error"
		_ = c.Error(err)
	}
	c.JSON(status, errorBody(appErr.Code, message))
}

// toInput accepts data as {successes, trials}, {values: [...]} or a bare array.
func (r createFitRequest) toInput() (domain.DataInput, error) {
	trimmed := bytes.TrimSpace(r.Data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return domain.DataInput{}, core.NewInvalidDataError("data", err.Error())
		}
		if raw, ok := probe["values"]; ok {
			trimmed = raw
		}
	}
	wire, err := json.Marshal(struct {
		Data   json.RawMessage     `json:"data"`
		Config *domain.InputConfig `json:"config,omitempty"`
	}{trimmed, r.Config})
	if err != nil {
		return domain.DataInput{}, core.NewInvalidDataError("data", err.Error())
	}
	var in domain.DataInput
	if err := json.Unmarshal(wire, &in); err != nil {
		return domain.DataInput{}, core.NewInvalidDataError("data", err.Error())
	}
	return in, nil
}

// CreateFit runs a fit and stores it
func (h *FitHandler) CreateFit(c *gin.Context) {
	var req createFitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, core.NewInvalidDataError("body", err.Error()))
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}

	rec, err := h.svc.Fit(c.Request.Context(), worker.FitRequest{
		ModelType: domain.ModelType(req.ModelType),
		Input:     in,
		Options:   req.Options,
	}, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fitResponse{
		ID:          rec.ID,
		ModelType:   rec.ModelType,
		Diagnostics: rec.Diagnostics,
		Summary:     rec.Summary,
	})
}

func (h *FitHandler) lookup(c *gin.Context) (*domain.FitRecord, bool) {
	id, err := core.ParseFitID(c.Param("id"))
	if err != nil {
		respondError(c, core.NewInvalidDataError("id", err.Error()))
		return nil, false
	}
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rec, true
}

// GetFit returns a stored fit including its posterior snapshot
func (h *FitHandler) GetFit(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := inference.EncodePosterior(rec.Posterior)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fitResponse{
		ID:          rec.ID,
		ModelType:   rec.ModelType,
		Diagnostics: rec.Diagnostics,
		Summary:     rec.Summary,
		DataHash:    rec.DataHash,
		CreatedAt:   &rec.CreatedAt,
		Posterior:   &snap,
	})
}

// ListFits returns recent fits, optionally filtered by model type
func (h *FitHandler) ListFits(c *gin.Context) {
	filter := ports.FitFilter{ModelType: domain.ModelType(c.Query("modelType"))}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			respondError(c, core.NewInvalidDataError("limit", fmt.Sprintf("must be an integer in [1, 500] (got %q)", raw)))
			return
		}
		filter.Limit = limit
	}
	recs, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]fitResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fitResponse{
			ID:          rec.ID,
			ModelType:   rec.ModelType,
			Diagnostics: rec.Diagnostics,
			Summary:     rec.Summary,
			DataHash:    rec.DataHash,
			CreatedAt:   &rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"fits": out})
}

// SampleFit draws posterior samples from a stored fit
func (h *FitHandler) SampleFit(c *gin.Context) {
	id, err := core.ParseFitID(c.Param("id"))
	if err != nil {
		respondError(c, core.NewInvalidDataError("id", err.Error()))
		return
	}
	var req sampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, core.NewInvalidDataError("count", err.Error()))
		return
	}
	samples, err := h.svc.Sample(c.Request.Context(), id, req.Count, req.Seed, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

// GetReport renders a stored fit as HTML, or Markdown with ?format=markdown
func (h *FitHandler) GetReport(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	switch c.DefaultQuery("format", "html") {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(rec)))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(rec))
	default:
		respondError(c, core.NewInvalidDataError("format", "must be html or markdown"))
	}
}
