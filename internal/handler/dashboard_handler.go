package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
}

// LoadTemplates разбирает встроенные HTML шаблоны для gin
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

type DashboardHandler struct {
	linkService LinkService
	logger      *zap.Logger
}

func NewDashboardHandler(linkService LinkService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		linkService: linkService,
		logger:      logger,
	}
}

func (h *DashboardHandler) Index(c *gin.Context) {
	links, err := h.linkService.ListLinks(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list links for dashboard", zap.Error(err))
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Links": links,
	})
}

// Stats не засчитывает клик: страница статистики только читает ссылку
func (h *DashboardHandler) Stats(c *gin.Context) {
	code := c.Param("code")

	link, err := h.linkService.GetLink(c.Request.Context(), code)
	if errors.Is(err, apperrors.ErrLinkNotFound) || apperrors.IsValidationError(err) {
		c.HTML(http.StatusNotFound, "not_found.html", gin.H{
			"Code": code,
		})
		return
	}
	if err != nil {
		h.logger.Error("failed to load link stats", zap.String("short_code", code), zap.Error(err))
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	c.HTML(http.StatusOK, "stats.html", gin.H{
		"Link":     link,
		"ShortURL": h.linkService.BuildShortURL(link.ShortCode),
	})
}
