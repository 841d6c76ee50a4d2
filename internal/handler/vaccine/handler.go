package vaccine

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	vaccsvc "github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/vaccine"
	apperrors "github.com/Aytsuu/CIUDAD-APP-sub005/pkg/errors"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/httputil"
)

type Handler struct {
	directory vaccsvc.Directory
}

func NewHandler(directory vaccsvc.Directory) *Handler {
	return &Handler{directory: directory}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	vaccines := r.Group("/vaccines")
	{
		vaccines.GET("", h.ListVaccines)
		vaccines.GET("/:id", h.GetVaccine)
		vaccines.GET("/:id/batches", h.ListBatches)
	}
}

func (h *Handler) ListVaccines(c *gin.Context) {
	vaccines, err := h.directory.ListDefinitions(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, vaccines)
}

func (h *Handler) GetVaccine(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid vaccine ID", err))
		return
	}

	vaccine, err := h.directory.GetDefinition(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("vaccine", err))
		return
	}
	httputil.RespondWithSuccess(c, vaccine)
}

func (h *Handler) ListBatches(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid vaccine ID", err))
		return
	}

	batches, err := h.directory.ListBatches(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, batches)
}
