package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minndara/site-admin/internal/handler"
	"github.com/minndara/site-admin/internal/middleware"
	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/service/auth"
	"github.com/minndara/site-admin/pkg/httputil"
)

type Handler struct {
	svc auth.Servicer
}

func NewHandler(svc auth.Servicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}
}

// RegisterProtectedRoutes mounts the routes that need a session.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, httputil.BindingError(err))
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, tokens)
}

func (h *Handler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httputil.NewErrorResponse("missing bearer token"))
		return
	}
	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusUnauthorized, httputil.NewErrorResponse("invalid token"))
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "logged out successfully")
}

func (h *Handler) Me(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, model.Identity{
		UID:   c.GetString(middleware.ContextUserID),
		Email: c.GetString(middleware.ContextUserEmail),
	})
}
