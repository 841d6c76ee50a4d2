package vaccination

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/middleware"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/schedule"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/stock"
	vaccsvc "github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/vaccination"
	apperrors "github.com/Aytsuu/CIUDAD-APP-sub005/pkg/errors"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/httputil"
)

type Handler struct {
	service vaccsvc.Service
}

func NewHandler(service vaccsvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	vaccinations := r.Group("/vaccinations")
	{
		vaccinations.POST("", h.Administer)
		vaccinations.POST("/deferred", h.AdministerDeferred)
		vaccinations.POST("/:id/complete", h.CompleteDeferred)
	}
}

// Administer records a self-contained administration: vitals in the
// request, stock decremented, follow-up scheduled.
func (h *Handler) Administer(c *gin.Context) {
	var sub model.VaccinationSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	operator, ok := middleware.StaffID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	sub.Operator = operator

	outcome, err := h.service.Administer(c.Request.Context(), &sub)
	if err != nil {
		httputil.RespondWithError(c, mapServiceError(err))
		return
	}

	httputil.RespondWithCreated(c, outcome)
}

// AdministerDeferred records a forwarded administration: the entry is
// created with an assignee and waits for step-2 completion.
func (h *Handler) AdministerDeferred(c *gin.Context) {
	var sub model.VaccinationSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if sub.AssignTo == nil {
		httputil.RespondWithError(c, apperrors.BadRequest("assign_to is required for a deferred administration", nil))
		return
	}
	sub.Vitals = nil

	operator, ok := middleware.StaffID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	sub.Operator = operator

	outcome, err := h.service.Administer(c.Request.Context(), &sub)
	if err != nil {
		httputil.RespondWithError(c, mapServiceError(err))
		return
	}

	httputil.RespondWithCreated(c, outcome)
}

// CompleteDeferred finishes a forwarded entry with the second
// operator's vitals.
func (h *Handler) CompleteDeferred(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid history entry ID", err))
		return
	}

	var req model.CompleteDeferredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	operator, ok := middleware.StaffID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	req.Operator = operator

	outcome, err := h.service.CompleteDeferred(c.Request.Context(), entryID, &req)
	if err != nil {
		httputil.RespondWithError(c, mapServiceError(err))
		return
	}

	httputil.RespondWithSuccess(c, outcome)
}

// mapServiceError translates saga failures into API error codes. A
// PartialRollbackError stays internal: the orphan list belongs in the
// logs, not in the response body.
func mapServiceError(err error) error {
	var partialErr *vaccsvc.PartialRollbackError
	if errors.As(err, &partialErr) {
		return apperrors.Internal(err)
	}

	var regimenErr *schedule.RegimenCompleteError
	switch {
	case errors.As(err, &regimenErr):
		return apperrors.Conflict(regimenErr.Error(), err)
	case errors.Is(err, vaccsvc.ErrInvalidSubmission):
		return apperrors.BadRequest(err.Error(), err)
	case errors.Is(err, vaccsvc.ErrDuplicateVaccination):
		return apperrors.Conflict(err.Error(), err)
	case errors.Is(err, vaccsvc.ErrNotForwarded):
		return apperrors.Conflict(err.Error(), err)
	case errors.Is(err, stock.ErrInsufficientStock):
		return apperrors.Unprocessable(err.Error(), err)
	case errors.Is(err, stock.ErrBatchExpired):
		return apperrors.Unprocessable(err.Error(), err)
	default:
		return apperrors.Internal(err)
	}
}
