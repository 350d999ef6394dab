package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timelens/internal/models/response_models"
	"timelens/internal/services"
	"timelens/pkg/middleware"
	"timelens/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTransformService struct {
	got services.TransformInput
	err error
}

func (f *fakeTransformService) Transform(ctx context.Context, in services.TransformInput) (response_models.TransformResponse, error) {
	f.got = in
	if f.err != nil {
		return response_models.TransformResponse{}, f.err
	}
	return response_models.TransformResponse{
		Result: response_models.TransformResultResponse{ID: "r1", Theme: "anime"},
		Quota:  response_models.QuotaStatus{Allowed: true, Remaining: 1, Limit: 2},
	}, nil
}

func (f *fakeTransformService) ListResults(ctx context.Context, userID string, page, pageSize int) (response_models.PagedResults, error) {
	if page < 0 {
		return response_models.PagedResults{}, utils.ErrInvalidPage
	}
	return response_models.PagedResults{Page: page, PageSize: pageSize}, nil
}

type fakeWebhookService struct {
	signature string
	err       error
}

func (f *fakeWebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	f.signature = signature
	return f.err
}

func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func multipartUpload(t *testing.T, fields map[string]string, contentType string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="portrait.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTransformRouter(svc services.TransformServiceInterface) *gin.Engine {
	ctrl := NewTransformController(svc)
	r := gin.New()
	r.POST("/transform", withUser("u1"), ctrl.Transform)
	r.GET("/transformations", withUser("u1"), ctrl.ListTransformations)
	r.GET("/themes", ctrl.ListThemes)
	return r
}

func TestTransformController_Success(t *testing.T) {
	svc := &fakeTransformService{}
	r := newTransformRouter(svc)

	body, ct := multipartUpload(t, map[string]string{"eraTheme": "anime"}, "image/png", []byte("\x89PNG\r\n\x1a\nxxxx"))
	req := httptest.NewRequest(http.MethodPost, "/transform", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w).Status)
	assert.Equal(t, "u1", svc.got.UserID)
	assert.Equal(t, "anime", svc.got.EraTheme)
	assert.Equal(t, "portrait.png", svc.got.ImageName)
	assert.Equal(t, "image/png", svc.got.DeclaredMIME)
}

func TestTransformController_MissingImage(t *testing.T) {
	r := newTransformRouter(&fakeTransformService{})

	body, ct := multipartUpload(t, map[string]string{"eraTheme": "anime"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/transform", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransformController_TooLarge(t *testing.T) {
	r := newTransformRouter(&fakeTransformService{})

	body, ct := multipartUpload(t, nil, "image/png", bytes.Repeat([]byte{0x1}, MaxUploadBytes+10))
	req := httptest.NewRequest(http.MethodPost, "/transform", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTransformController_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&utils.QuotaExceededError{Remaining: 0, Limit: 2}, http.StatusTooManyRequests},
		{utils.InvalidRequest("file must be an image"), http.StatusBadRequest},
		{&utils.GenerationFailedError{Attempts: 3, Cause: errors.New("boom")}, http.StatusBadGateway},
		{utils.StorageError("stage original", errors.New("down")), http.StatusServiceUnavailable},
		{utils.ErrNotFound, http.StatusNotFound},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTransformRouter(&fakeTransformService{err: tc.err})
		body, ct := multipartUpload(t, map[string]string{"eraTheme": "anime"}, "image/png", []byte("\x89PNG\r\n\x1a\nxxxx"))
		req := httptest.NewRequest(http.MethodPost, "/transform", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Equal(t, "error", decode(t, w).Status)
	}
}

func TestTransformController_QuotaBodyCarriesLimit(t *testing.T) {
	r := newTransformRouter(&fakeTransformService{err: &utils.QuotaExceededError{Remaining: 0, Limit: 2}})
	body, ct := multipartUpload(t, map[string]string{"eraTheme": "anime"}, "image/png", []byte("\x89PNG\r\n\x1a\nxxxx"))
	req := httptest.NewRequest(http.MethodPost, "/transform", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := decode(t, w)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, data["limit"])
	assert.EqualValues(t, 0, data["remaining"])
}

func TestTransformController_ListAndThemes(t *testing.T) {
	r := newTransformRouter(&fakeTransformService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transformations?page=2&page_size=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transformations?page=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transformations?page=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/themes", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBillingWebhookController(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"applied", nil, http.StatusOK},
		{"bad signature", services.ErrInvalidSignature, http.StatusBadRequest},
		{"retryable", utils.ErrDatabaseError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeWebhookService{err: tc.err}
			r := gin.New()
			r.POST("/webhooks/billing", NewBillingWebhookController(svc).HandleWebhook)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewBufferString(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, "t=1,v1=abc", svc.signature)
		})
	}
}
