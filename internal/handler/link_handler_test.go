package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockLinkService struct {
	mock.Mock
}

func (m *mockLinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.Link, error) {
	args := m.Called(ctx, req)
	link, _ := args.Get(0).(*model.Link)
	return link, args.Error(1)
}

func (m *mockLinkService) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*model.Link)
	return link, args.Error(1)
}

func (m *mockLinkService) ListLinks(ctx context.Context) ([]*model.Link, error) {
	args := m.Called(ctx)
	links, _ := args.Get(0).([]*model.Link)
	return links, args.Error(1)
}

func (m *mockLinkService) DeleteLink(ctx context.Context, shortCode string) error {
	return m.Called(ctx, shortCode).Error(0)
}

func (m *mockLinkService) Resolve(ctx context.Context, shortCode string) (*model.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*model.Link)
	return link, args.Error(1)
}

func (m *mockLinkService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLinkService) BuildShortURL(shortCode string) string {
	return "http://localhost:8080/" + shortCode
}

func newTestRouter(t *testing.T, svc *mockLinkService) *gin.Engine {
	t.Helper()

	router, err := NewRouter(RouterConfig{
		LinkService: svc,
		Storage:     svc,
		Driver:      "sqlite",
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	return router
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleLink(code, target string) *model.Link {
	return &model.Link{
		ID:        1,
		ShortCode: code,
		TargetURL: target,
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLinkHandler_CreateLink(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)

	svc.On("CreateLink", mock.Anything, &model.CreateLinkRequest{
		TargetURL:  "https://example.com/docs",
		CustomCode: "docs123",
	}).Return(sampleLink("docs123", "https://example.com/docs"), nil).Once()

	w := doRequest(router, http.MethodPost, "/api/links", gin.H{
		"target_url":  "https://example.com/docs",
		"custom_code": "docs123",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "docs123", body["short_code"])
	assert.Equal(t, "https://example.com/docs", body["target_url"])
	assert.EqualValues(t, 0, body["total_clicks"])
	assert.Nil(t, body["last_clicked_time"])
	svc.AssertExpectations(t)
}

func TestLinkHandler_CreateLink_BindingErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantError string
		wantField string
	}{
		{
			name:      "missing target url",
			body:      gin.H{"custom_code": "abc123"},
			wantError: "validation_error",
			wantField: "target_url",
		},
		{
			name:      "custom code too short",
			body:      gin.H{"target_url": "https://example.com", "custom_code": "ab"},
			wantError: "validation_error",
			wantField: "custom_code",
		},
		{
			name:      "custom code too long",
			body:      gin.H{"target_url": "https://example.com", "custom_code": "abcdefghi"},
			wantError: "validation_error",
			wantField: "custom_code",
		},
		{
			name:      "custom code with symbols",
			body:      gin.H{"target_url": "https://example.com", "custom_code": "abc-123"},
			wantError: "validation_error",
			wantField: "custom_code",
		},
		{
			name:      "malformed json",
			body:      `{"target_url":`,
			wantError: "invalid_request",
		},
		{
			name:      "wrong type",
			body:      `{"target_url": 42}`,
			wantError: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockLinkService)
			router := newTestRouter(t, svc)

			w := doRequest(router, http.MethodPost, "/api/links", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
			svc.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything)
		})
	}
}

func TestLinkHandler_CreateLink_EmptyBody(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, w)["error"])
}

func TestLinkHandler_CreateLink_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid url",
			err:        apperrors.NewValidationError("target_url", "URL must use http or https scheme"),
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "code in use",
			err:        apperrors.NewConflictError("dup1234"),
			wantStatus: http.StatusConflict,
			wantError:  "code_conflict",
		},
		{
			name:       "generation exhausted",
			err:        apperrors.NewBusinessError(apperrors.CodeShortCodeGeneration, "failed to generate short code", nil),
			wantStatus: http.StatusInternalServerError,
			wantError:  "business_error",
		},
		{
			name:       "storage failure",
			err:        apperrors.NewStorageError("create", errors.New("connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "storage_error",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockLinkService)
			router := newTestRouter(t, svc)
			svc.On("CreateLink", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := doRequest(router, http.MethodPost, "/api/links", gin.H{"target_url": "https://example.com"})

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
		})
	}
}

func TestLinkHandler_CreateLink_ConflictBody(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)
	svc.On("CreateLink", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewConflictError("dup1234")).Once()

	w := doRequest(router, http.MethodPost, "/api/links", gin.H{
		"target_url":  "https://example.com",
		"custom_code": "dup1234",
	})

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "The code 'dup1234' is already in use. Please try another.", body["message"])
	assert.Equal(t, "dup1234", body["short_code"])
}

func TestLinkHandler_ListLinks(t *testing.T) {
	t.Run("empty store returns empty array", func(t *testing.T) {
		svc := new(mockLinkService)
		router := newTestRouter(t, svc)
		svc.On("ListLinks", mock.Anything).Return([]*model.Link{}, nil).Once()

		w := doRequest(router, http.MethodGet, "/api/links", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := new(mockLinkService)
		router := newTestRouter(t, svc)
		svc.On("ListLinks", mock.Anything).
			Return(nil, apperrors.NewStorageError("list", errors.New("timeout"))).Once()

		w := doRequest(router, http.MethodGet, "/api/links", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestLinkHandler_GetLink(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)

	svc.On("GetLink", mock.Anything, "abc123").Return(sampleLink("abc123", "https://example.com"), nil).Once()
	svc.On("GetLink", mock.Anything, "nope123").Return(nil, apperrors.ErrLinkNotFound).Once()

	w := doRequest(router, http.MethodGet, "/api/links/abc123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", decodeBody(t, w)["short_code"])

	w = doRequest(router, http.MethodGet, "/api/links/nope123", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "link_not_found", decodeBody(t, w)["error"])

	// просмотр через API не засчитывает клик
	svc.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestLinkHandler_DeleteLink(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)

	svc.On("DeleteLink", mock.Anything, "abc123").Return(nil).Once()
	svc.On("DeleteLink", mock.Anything, "gone123").
		Return(fmt.Errorf("link with short code 'gone123': %w", apperrors.ErrLinkNotFound)).Once()

	w := doRequest(router, http.MethodDelete, "/api/links/abc123", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = doRequest(router, http.MethodDelete, "/api/links/gone123", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLinkHandler_RedirectLink(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(mockLinkService)
		router := newTestRouter(t, svc)
		svc.On("Resolve", mock.Anything, "docs123").
			Return(sampleLink("docs123", "https://example.com/docs"), nil).Once()

		w := doRequest(router, http.MethodGet, "/docs123", nil)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/docs", w.Header().Get("Location"))
	})

	t.Run("unknown code", func(t *testing.T) {
		svc := new(mockLinkService)
		router := newTestRouter(t, svc)
		svc.On("Resolve", mock.Anything, "nope123").Return(nil, apperrors.ErrLinkNotFound).Once()

		w := doRequest(router, http.MethodGet, "/nope123", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Link Not Found", w.Body.String())
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := new(mockLinkService)
		router := newTestRouter(t, svc)
		svc.On("Resolve", mock.Anything, "abc123").
			Return(nil, apperrors.NewStorageError("find", errors.New("down"))).Once()

		w := doRequest(router, http.MethodGet, "/abc123", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})
}

func TestRouter_RequestIDHeader(t *testing.T) {
	svc := new(mockLinkService)
	router := newTestRouter(t, svc)

	w := doRequest(router, http.MethodGet, "/healthz", nil)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
