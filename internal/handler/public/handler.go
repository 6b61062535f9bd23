package public

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minndara/site-admin/internal/handler"
	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/service/public"
	"github.com/minndara/site-admin/internal/service/settings"
	"github.com/minndara/site-admin/pkg/httputil"
)

// Reader is the read side the public endpoints need.
type Reader interface {
	DefaultCategory() string
	Search(ctx context.Context, category, query string) ([]*model.ServiceRecord, error)
	Settings(ctx context.Context, variant string) (*model.Settings, error)
	RenderPage(ctx context.Context, w io.Writer, page, explicit string) (string, error)
}

type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

type servicesResponse struct {
	Category string                 `json:"category"`
	Services []*model.ServiceRecord `json:"services"`
}

type settingsResponse struct {
	*model.Settings
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	pub := r.Group("/public")
	{
		pub.GET("/services", h.Services)
		pub.GET("/pages/:page", h.Page)
		pub.GET("/settings", h.Settings)
	}
}

// Services lists the active services of the category the caller's page
// belongs to, optionally filtered by q.
func (h *Handler) Services(c *gin.Context) {
	category := public.DetectCategory(c.Query("cat"), c.Query("page"), c.Query("path"), h.reader.DefaultCategory())

	records, err := h.reader.Search(c.Request.Context(), category, c.Query("q"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, servicesResponse{Category: category, Services: records})
}

// Page renders the services list of a page as HTML. When the store cannot be
// read the page gets the unavailable message instead of an error body.
func (h *Handler) Page(c *gin.Context) {
	var buf bytes.Buffer
	category, err := h.reader.RenderPage(c.Request.Context(), &buf, c.Param("page"), c.Query("cat"))
	if err != nil {
		buf.Reset()
		if renderErr := public.RenderUnavailable(&buf, category); renderErr != nil {
			handler.RespondWithError(c, renderErr)
			return
		}
		c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", buf.Bytes())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) Settings(c *gin.Context) {
	st, err := h.reader.Settings(c.Request.Context(), c.Query("variant"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	resp := settingsResponse{Settings: st}
	if st.WhatsApp != "" {
		resp.WhatsAppLink = settings.WhatsAppLink(st.WhatsApp, c.Query("text"))
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}
