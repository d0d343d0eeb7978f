package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type LinkService interface {
	CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.Link, error)
	GetLink(ctx context.Context, shortCode string) (*model.Link, error)
	ListLinks(ctx context.Context) ([]*model.Link, error)
	DeleteLink(ctx context.Context, shortCode string) error
	Resolve(ctx context.Context, shortCode string) (*model.Link, error)
	Ping(ctx context.Context) error
	BuildShortURL(shortCode string) string
}

type LinkHandler struct {
	linkService LinkService
	logger      *zap.Logger
}

func NewLinkHandler(linkService LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		logger:      logger,
	}
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, err)
		return
	}

	link, err := h.linkService.CreateLink(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.linkService.ListLinks(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.linkService.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.linkService.DeleteLink(c.Request.Context(), c.Param("code")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RedirectLink - GET /:code. Учет клика внутри Resolve не влияет на ответ.
func (h *LinkHandler) RedirectLink(c *gin.Context) {
	code := c.Param("code")

	link, err := h.linkService.Resolve(c.Request.Context(), code)
	if errors.Is(err, apperrors.ErrLinkNotFound) {
		c.String(http.StatusNotFound, "Link Not Found")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve link", zap.String("short_code", code), zap.Error(err))
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	c.Redirect(http.StatusFound, link.TargetURL)
}

func (h *LinkHandler) handleBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationMessage(fe),
			"field":   fe.Field(),
		})
		return
	}

	message := "Invalid JSON format"
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		message = "Request body is empty"
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Field '%s' has invalid type", typeErr.Field)
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

// handleError обрабатывает ошибки и возвращает соответствующие HTTP коды
func (h *LinkHandler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	if apperrors.IsValidationError(err) {
		validationErr := apperrors.GetValidationError(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationErr.Message,
			"field":   validationErr.Field,
		})
		return
	}

	if errors.Is(err, apperrors.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "link_not_found",
			"message": "Link not found",
		})
		return
	}

	if conflictErr := apperrors.GetConflictError(err); conflictErr != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "code_conflict",
			"message":    fmt.Sprintf("The code '%s' is already in use. Please try another.", conflictErr.ShortCode),
			"short_code": conflictErr.ShortCode,
		})
		return
	}

	if apperrors.IsBusinessError(err) {
		businessErr := apperrors.GetBusinessError(err)
		h.logger.Error("business error", zap.String("code", businessErr.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "business_error",
			"message": businessErr.Message,
			"code":    businessErr.Code,
		})
		return
	}

	if apperrors.IsStorageError(err) {
		h.logger.Error("storage error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": "Storage is temporarily unavailable",
		})
		return
	}

	h.logger.Error("unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "alphanum":
		return fmt.Sprintf("%s may contain only letters and digits", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be 6-8 characters long", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
