package services

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minndara/site-admin/internal/handler"
	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/service/catalog"
	"github.com/minndara/site-admin/pkg/errors"
	"github.com/minndara/site-admin/pkg/httputil"
)

type Handler struct {
	catalog catalog.Servicer
}

func NewHandler(svc catalog.Servicer) *Handler {
	return &Handler{catalog: svc}
}

type MoveRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

type listResponse struct {
	Category string                 `json:"category"`
	Services []*model.ServiceRecord `json:"services"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	services := r.Group("/services")
	{
		services.GET("", h.List)
		services.POST("", h.Create)
		services.GET("/:id", h.Get)
		services.PATCH("/:id", h.Update)
		services.DELETE("/:id", h.Delete)
		services.POST("/:id/toggle", h.Toggle)
		services.POST("/:id/move", h.Move)
	}
}

// category reads the cat query parameter on every request.
func (h *Handler) category(c *gin.Context) string {
	if cat := catalog.NormalizeCategory(c.Query("cat")); cat != "" {
		return cat
	}
	return h.catalog.DefaultCategory()
}

func (h *Handler) respondWithList(c *gin.Context, category string) {
	records, err := h.catalog.List(c.Request.Context(), category)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, listResponse{Category: category, Services: records})
}

func (h *Handler) List(c *gin.Context) {
	h.respondWithList(c, h.category(c))
}

func (h *Handler) Get(c *gin.Context) {
	record, err := h.catalog.Get(c.Request.Context(), h.category(c), c.Param("id"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, record)
}

func (h *Handler) Create(c *gin.Context) {
	var in model.ServiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.RespondWithError(c, httputil.BindingError(err))
		return
	}

	id, err := h.catalog.Create(c.Request.Context(), h.category(c), &in)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) Update(c *gin.Context) {
	var in model.ServiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.RespondWithError(c, httputil.BindingError(err))
		return
	}

	category := h.category(c)
	id := c.Param("id")
	if err := h.catalog.Update(c.Request.Context(), category, id, &in); err != nil {
		handler.RespondWithError(c, err)
		return
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		category = catalog.NormalizeCategory(*in.Category)
	}

	record, err := h.catalog.Get(c.Request.Context(), category, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, record)
}

func (h *Handler) Toggle(c *gin.Context) {
	id := c.Param("id")
	active, err := h.catalog.ToggleActive(c.Request.Context(), h.category(c), id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"id": id, "active": active})
}

// Move swaps a service with its neighbour and answers with the reordered list.
func (h *Handler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, httputil.BindingError(err))
		return
	}
	dir, err := catalog.ParseDirection(req.Direction)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	category := h.category(c)
	if err := h.catalog.Move(c.Request.Context(), category, c.Param("id"), dir); err != nil {
		handler.RespondWithError(c, err)
		return
	}
	h.respondWithList(c, category)
}

func (h *Handler) Delete(c *gin.Context) {
	var confirmed bool
	if raw := c.Query("confirm"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("confirm must be a boolean", err))
			return
		}
		confirmed = v
	}

	err := h.catalog.Delete(c.Request.Context(), h.category(c), c.Param("id"), catalog.DeleteOptions{Confirmed: confirmed})
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
