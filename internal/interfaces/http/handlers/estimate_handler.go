// Package handlers holds the HTTP request handlers for the estimation API.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Estimator is the engine seam consumed by the estimate handler.
type Estimator interface {
	Estimate(ctx context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error)
}

// EstimateRequest is the POST /api/v1/estimates body.
type EstimateRequest struct {
	Port       string   `json:"port"`
	VesselName string   `json:"vessel_name,omitempty"`
	Voyage     string   `json:"voyage,omitempty"`
	GRT        float64  `json:"grt"`
	LOA        float64  `json:"loa"`
	Draft      *float64 `json:"draft,omitempty"`
	IsShifting bool     `json:"is_shifting"`
	VesselType string   `json:"vessel_type,omitempty"`
	// Mode selects the response shape: "fda" for a full itemized
	// breakdown, "quotation" for a condensed one.  Defaults to "fda".
	Mode string `json:"mode,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EstimateHandler serves cost estimates.
type EstimateHandler struct {
	engine Estimator
	logger logging.Logger
}

// NewEstimateHandler builds an EstimateHandler.
func NewEstimateHandler(engine Estimator, logger logging.Logger) *EstimateHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EstimateHandler{engine: engine, logger: logger.Named("estimate_handler")}
}

// Create handles POST /api/v1/estimates.
func (h *EstimateHandler) Create(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    string(errors.ErrCodeBadRequest),
			Message: "malformed request body",
		})
		return
	}

	mode := estimate.ModeFDA
	if req.Mode != "" {
		var err error
		mode, err = estimate.ParseMode(req.Mode)
		if err != nil {
			writeAppError(c, err)
			return
		}
	}

	spec := estimate.VesselSpec{
		Port:       req.Port,
		VesselName: req.VesselName,
		Voyage:     req.Voyage,
		GRT:        req.GRT,
		LOA:        req.LOA,
		Draft:      req.Draft,
		IsShifting: req.IsShifting,
		VesselType: req.VesselType,
	}

	est, err := h.engine.Estimate(c.Request.Context(), spec, mode)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// writeAppError maps a typed application error to its HTTP status.
// Internal errors are masked; everything else carries its code and message
// through so callers can branch on the taxonomy.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError && code == errors.ErrCodeInternal {
		c.JSON(status, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}
	c.JSON(status, ErrorResponse{Code: string(code), Message: err.Error()})
}
