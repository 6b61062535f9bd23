package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minndara/site-admin/internal/handler"
	"github.com/minndara/site-admin/internal/service/settings"
	"github.com/minndara/site-admin/pkg/errors"
	"github.com/minndara/site-admin/pkg/httputil"
)

type Handler struct {
	svc settings.Servicer
}

func NewHandler(svc settings.Servicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Save)
}

func (h *Handler) Get(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Query("variant"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, st)
}

// Save merges the posted fields into the stored settings.
func (h *Handler) Save(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("settings must be a JSON object", err))
		return
	}
	if len(fields) == 0 {
		httputil.RespondWithError(c, errors.BadRequest("no settings supplied", nil))
		return
	}

	st, err := h.svc.Save(c.Request.Context(), c.Query("variant"), fields)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, st)
}
