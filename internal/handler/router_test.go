package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/handler/dto"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/ratelimit"
	"github.com/utrscan/utrscan/internal/repository"
	"github.com/utrscan/utrscan/internal/service"
	"github.com/utrscan/utrscan/internal/testutil"
)

type userDirectory struct {
	byPrefix map[string]*model.User
	byID     map[string]*model.User
}

func newUserDirectory(users ...*model.User) *userDirectory {
	d := &userDirectory{byPrefix: map[string]*model.User{}, byID: map[string]*model.User{}}
	for _, u := range users {
		d.byPrefix[u.KeyPrefix] = u
		d.byID[u.ID] = u
	}
	return d
}

func (d *userDirectory) GetUserByKeyPrefix(_ context.Context, prefix string) (*model.User, error) {
	if u, ok := d.byPrefix[prefix]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (d *userDirectory) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := d.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type recordingProcessor struct {
	mu    sync.Mutex
	calls []string
	data  model.ExtractedData
	err   error
}

func (p *recordingProcessor) Process(_ context.Context, userID string, img extractor.Image) (*model.ExtractedData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, userID+":"+img.MIMEType)
	if p.err != nil {
		return nil, p.err
	}
	d := p.data
	return &d, nil
}

type stubAccounts struct {
	created []service.CreateUserInput
	result  *service.CreateUserResult
	err     error
	list    []model.UserSummary
}

func (s *stubAccounts) CreateUser(_ context.Context, in service.CreateUserInput) (*service.CreateUserResult, error) {
	s.created = append(s.created, in)
	return s.result, s.err
}

func (s *stubAccounts) ListUsers(context.Context) ([]model.UserSummary, error) {
	return s.list, nil
}

type stubLogs struct {
	lastQuery service.LogQuery
	page      *service.LogPage
	err       error
}

func (s *stubLogs) ListLogs(_ context.Context, q service.LogQuery) (*service.LogPage, error) {
	s.lastQuery = q
	return s.page, s.err
}

type routerFixture struct {
	router    http.Handler
	admin     *model.User
	adminKey  string
	member    *model.User
	memberKey string
	processor *recordingProcessor
	accounts  *stubAccounts
	logs      *stubLogs
	metrics   *metrics.InMemoryRecorder
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	admin, adminKey := testutil.NewTestUser(t, true)
	member, memberKey := testutil.NewTestUser(t, false)
	rec := metrics.NewInMemory()

	f := &routerFixture{
		admin:     admin,
		adminKey:  adminKey,
		member:    member,
		memberKey: memberKey,
		processor: &recordingProcessor{data: model.ExtractedData{
			Date: "01/05/2024", UTR: "412345678901", Amount: "1500", IsEdited: false,
		}},
		accounts: &stubAccounts{},
		logs:     &stubLogs{page: &service.LogPage{Pagination: model.NewPagination(1, 20, 0)}},
		metrics:  rec,
	}

	f.router = NewRouter(RouterConfig{
		Logger:           discardLogger(),
		Version:          "test",
		MaxUploadSize:    5 << 20,
		Users:            newUserDirectory(admin, member),
		AuthMinDuration:  time.Millisecond,
		Limiter:          ratelimit.NewFixedWindow(20, time.Minute),
		RateLimitEnabled: true,
		Metrics:          rec,
		Snapshotter:      rec,
		Processor:        f.processor,
		Accounts:         f.accounts,
		Logs:             f.logs,
	})
	return f
}

func (f *routerFixture) do(req *http.Request, key string) *httptest.ResponseRecorder {
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T) *http.Request {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 8))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process-image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_HealthNeedsNoKey(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_MissingOrInvalidKeyIs401(t *testing.T) {
	f := newRouterFixture(t)

	requests := []func() *http.Request{
		func() *http.Request { return uploadRequest(t) },
		func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/logs", nil) },
		func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(`{"name":"a","email":"a@b.co"}`))
		},
		func() *http.Request { return httptest.NewRequest(http.MethodGet, "/metrics", nil) },
		func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", nil) },
	}

	for _, key := range []string{"", "garbage", "utr_000000_00000000000000000000000000000000"} {
		for _, build := range requests {
			req := build()
			rec := f.do(req, key)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s key=%q", req.Method, req.URL.Path, key)
			assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
		}
	}
	assert.Empty(t, f.processor.calls)
	assert.Empty(t, f.accounts.created)
}

func TestRouter_IndexRequiresKey(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/", nil), "").Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/", nil), f.memberKey).Code)
}

func TestRouter_NonAdminForbiddenOnAdminRoutes(t *testing.T) {
	f := newRouterFixture(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/admin/users", nil),
		httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(`{"name":"a","email":"a@b.co"}`)),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
	} {
		rec := f.do(req, f.memberKey)
		assert.Equal(t, http.StatusForbidden, rec.Code, req.URL.Path)
		assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	}
	assert.Empty(t, f.accounts.created)
}

func TestRouter_ProcessImage(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(uploadRequest(t), f.memberKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.ProcessImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "412345678901", resp.Data.UTR)
	assert.Equal(t, "1500", resp.Data.Amount)
	assert.Contains(t, rec.Body.String(), `"amount_in_inr":"1500"`)

	require.Len(t, f.processor.calls, 1)
	assert.Equal(t, f.member.ID+":image/png", f.processor.calls[0])
}

func TestRouter_ProcessImageFailures(t *testing.T) {
	t.Run("model unavailable", func(t *testing.T) {
		f := newRouterFixture(t)
		f.processor.err = errors.Join(service.ErrExtractionFailed, extractor.ErrModelUnavailable)

		rec := f.do(uploadRequest(t), f.memberKey)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "EXTRACTION_FAILED", decodeError(t, rec).Code)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newRouterFixture(t)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("note", "nothing"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/process-image", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := f.do(req, f.memberKey)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.processor.calls)
	})

	t.Run("too large", func(t *testing.T) {
		f := newRouterFixture(t)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("image", "huge.png")
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0x89}, 6<<20))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/process-image", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := f.do(req, f.memberKey)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, f.processor.calls)
	})
}

func TestRouter_RateLimitAppliesToMembersOnly(t *testing.T) {
	f := newRouterFixture(t)

	for i := 0; i < 20; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/logs", nil), f.memberKey)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/logs", nil), f.memberKey)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.NotEmpty(t, body["reset_at"])

	for i := 0; i < 25; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/logs", nil), f.adminKey)
		require.Equal(t, http.StatusOK, rec.Code, "admin request %d", i+1)
	}
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RateLimited)
}

func TestRouter_Logs(t *testing.T) {
	f := newRouterFixture(t)
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	f.logs.page = &service.LogPage{
		Logs: []*model.Log{{
			ID: "01HX", UserID: f.member.ID, Timestamp: ts,
			Data: model.ExtractedData{Date: "01/05/2024", UTR: "412345678901", Amount: "250"},
		}},
		Pagination: model.NewPagination(2, 1, 3),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs?startDate=2024-05-01&endDate=2024-05-02&page=2&limit=1", nil)
	rec := f.do(req, f.memberKey)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, service.LogQuery{
		UserID: f.member.ID, StartDate: "2024-05-01", EndDate: "2024-05-02", Page: "2", Limit: "1",
	}, f.logs.lastQuery)

	var resp dto.LogListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "250", resp.Logs[0].Amount)
	assert.Equal(t, 3, resp.Pagination.TotalPages)

	f.logs.err = service.ErrInvalidLimit
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/logs?limit=500", nil), f.memberKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_LIMIT", decodeError(t, rec).Code)
}

func TestRouter_AdminCreateUser(t *testing.T) {
	created := &model.User{ID: "u1", Name: "Asha", Email: "asha@example.com", KeyPrefix: "abc123"}

	t.Run("delivered by email", func(t *testing.T) {
		f := newRouterFixture(t)
		f.accounts.result = &service.CreateUserResult{User: created, Delivered: true}

		req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(`{"name":"Asha","email":"asha@example.com"}`))
		rec := f.do(req, f.adminKey)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp dto.CreateUserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Empty(t, resp.APIKey)
		assert.Equal(t, "u1", resp.User.ID)
		assert.Equal(t, []service.CreateUserInput{{Name: "Asha", Email: "asha@example.com"}}, f.accounts.created)
	})

	t.Run("mail disabled returns key once", func(t *testing.T) {
		f := newRouterFixture(t)
		f.accounts.result = &service.CreateUserResult{User: created, APIKey: "utr_abc123_" + strings.Repeat("0", 32)}

		req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(`{"name":"Asha","email":"asha@example.com"}`))
		rec := f.do(req, f.adminKey)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"api_key":"utr_abc123_`)
	})

	errCases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid json", `{"name":`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", `{"name":"a","email":"a@b.co","admin":true}`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"duplicate", `{"name":"a","email":"a@b.co"}`, service.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS"},
		{"bad email", `{"name":"a","email":"nope"}`, service.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL"},
		{"delivery failed", `{"name":"a","email":"a@b.co"}`, service.ErrKeyDeliveryFailed, http.StatusBadGateway, "KEY_DELIVERY_FAILED"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.accounts.err = tc.err

			rec := f.do(httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(tc.body)), f.adminKey)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestRouter_AdminListUsers(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), f.adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[],"total":0}`, rec.Body.String())

	f.accounts.list = []model.UserSummary{{ID: "u1", Name: "Asha", RequestCount: 7}}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), f.adminKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UserListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, int64(7), resp.Users[0].RequestCount)
}

func TestRouter_MetricsForAdmins(t *testing.T) {
	f := newRouterFixture(t)
	f.metrics.IncSubmission(metrics.StatusSuccess)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), f.adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `utrscan_submissions_total{status="success"} 1`)
}

func TestRouter_IdentityComesFromKeyNotBody(t *testing.T) {
	f := newRouterFixture(t)

	req := uploadRequest(t)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), f.admin.ToAuthContext()))
	rec := f.do(req, f.memberKey)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.processor.calls, 1)
	assert.True(t, strings.HasPrefix(f.processor.calls[0], f.member.ID))
}
