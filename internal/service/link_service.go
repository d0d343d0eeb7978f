package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/Kosench/tinylink/internal/repository"
	"github.com/Kosench/tinylink/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries   = 5
	DefaultClickTimeout = 2 * time.Second
)

type Options struct {
	BaseURL      string
	MaxRetries   int
	ClickTimeout time.Duration
}

type LinkService struct {
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	baseURL      string
	maxRetries   int
	clickTimeout time.Duration
	generateCode func() (string, error)
}

func NewLinkService(linkRepo repository.LinkRepository, logger *zap.Logger, opts Options) *LinkService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = DefaultClickTimeout
	}

	return &LinkService{
		linkRepo:     linkRepo,
		logger:       logger,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		maxRetries:   opts.MaxRetries,
		clickTimeout: opts.ClickTimeout,
		generateCode: utils.GenerateShortCode,
	}
}

// CreateLink создает ссылку с пользовательским или сгенерированным кодом.
// Коллизия пользовательского кода возвращается как ConflictError,
// коллизия сгенерированного - повторяется до maxRetries раз.
func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.Link, error) {
	targetURL := utils.SanitizeInput(req.TargetURL)
	if err := utils.ValidateURL(targetURL); err != nil {
		return nil, fmt.Errorf("validate target url: %w", err)
	}

	customCode := strings.TrimSpace(req.CustomCode)
	if customCode != "" {
		if err := utils.ValidateShortCode(customCode); err != nil {
			return nil, fmt.Errorf("validate custom code: %w", err)
		}

		link, err := s.linkRepo.Create(ctx, customCode, targetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		s.logger.Info("link created", zap.String("short_code", link.ShortCode), zap.Int64("link_id", link.ID))
		return link, nil
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, apperrors.NewBusinessError(apperrors.CodeShortCodeGeneration, "failed to generate short code", err)
		}

		if utils.IsReservedShortCode(code) {
			s.logger.Debug("generated short code is reserved, retrying",
				zap.String("short_code", code),
				zap.Int("attempt", attempt))
			continue
		}

		link, err := s.linkRepo.Create(ctx, code, targetURL)
		if errors.Is(err, apperrors.ErrShortCodeExists) {
			s.logger.Debug("generated short code collided, retrying",
				zap.String("short_code", code),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		s.logger.Info("link created", zap.String("short_code", link.ShortCode), zap.Int64("link_id", link.ID))
		return link, nil
	}

	return nil, apperrors.NewBusinessError(
		apperrors.CodeShortCodeGeneration,
		fmt.Sprintf("failed to generate unique short code after %d attempts", s.maxRetries),
		nil,
	)
}

func (s *LinkService) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	if shortCode == "" {
		return nil, apperrors.NewValidationError("short_code", "short code cannot be empty")
	}

	return s.linkRepo.FindByCode(ctx, shortCode)
}

func (s *LinkService) ListLinks(ctx context.Context) ([]*model.Link, error) {
	return s.linkRepo.ListAll(ctx)
}

func (s *LinkService) DeleteLink(ctx context.Context, shortCode string) error {
	if shortCode == "" {
		return apperrors.NewValidationError("short_code", "short code cannot be empty")
	}

	if err := s.linkRepo.DeleteByCode(ctx, shortCode); err != nil {
		return err
	}

	s.logger.Info("link deleted", zap.String("short_code", shortCode))
	return nil
}

// Resolve находит ссылку и учитывает клик. Ошибка учета клика не влияет
// на результат: она только логируется, редирект должен состояться.
func (s *LinkService) Resolve(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.linkRepo.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	s.recordClick(ctx, link)

	return link, nil
}

func (s *LinkService) recordClick(ctx context.Context, link *model.Link) {
	// отмена запроса клиентом не должна обрывать учет клика
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.clickTimeout)
	defer cancel()

	if _, err := s.linkRepo.RegisterClick(ctx, link.ID); err != nil {
		s.logger.Warn("click update failed",
			zap.String("short_code", link.ShortCode),
			zap.Int64("link_id", link.ID),
			zap.Error(err))
	}
}

func (s *LinkService) Ping(ctx context.Context) error {
	return s.linkRepo.Ping(ctx)
}

func (s *LinkService) BuildShortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, shortCode)
}
