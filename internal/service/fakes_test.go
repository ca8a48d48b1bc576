package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/repository"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserStore) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUserStore) ListNonAdminUsers(ctx context.Context) ([]*model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Error(1)
}

func (m *mockUserStore) BootstrapAdmin(ctx context.Context, user *model.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendAPIKey(ctx context.Context, to, name, apiKey string) error {
	return m.Called(ctx, to, name, apiKey).Error(0)
}

type stubExtractor struct {
	data *model.ExtractedData
	err  error
}

func (s stubExtractor) Extract(context.Context, extractor.Image) (*model.ExtractedData, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := *s.data
	return &d, nil
}

type memSubmissionStore struct {
	mu   sync.Mutex
	subs []*model.Submission
	err  error
}

func (s *memSubmissionStore) CreateSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

type recordingLogStore struct {
	filter repository.LogFilter
	page   int
	limit  int
	logs   []*model.Log
	total  int64
	err    error
}

func (s *recordingLogStore) ListLogs(_ context.Context, filter repository.LogFilter, page, limit int) ([]*model.Log, int64, error) {
	s.filter, s.page, s.limit = filter, page, limit
	return s.logs, s.total, s.err
}
