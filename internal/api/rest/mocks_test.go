package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/account"
	"github.com/davidleathers/workflow-insights-backend/internal/service/accounts"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) SignUp(ctx context.Context, email, password string) (*account.Account, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockAccounts) SignIn(ctx context.Context, email, password string) (*accounts.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Session), args.Error(1)
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Process(ctx context.Context, accountID uuid.UUID, in io.Reader) (*reporting.Document, error) {
	body, _ := io.ReadAll(in)
	args := m.Called(ctx, accountID, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Document), args.Error(1)
}

func (m *mockReports) Report(ctx context.Context, accountID uuid.UUID) (*reporting.Document, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Document), args.Error(1)
}

func (m *mockReports) Section(ctx context.Context, accountID uuid.UUID, name string) (json.RawMessage, error) {
	args := m.Called(ctx, accountID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// fakeHub records which accounts subscribed
type fakeHub struct {
	mu       sync.Mutex
	accounts []uuid.UUID
}

func (h *fakeHub) Serve(w http.ResponseWriter, _ *http.Request, accountID uuid.UUID) {
	h.mu.Lock()
	h.accounts = append(h.accounts, accountID)
	h.mu.Unlock()
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (h *fakeHub) served() []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uuid.UUID(nil), h.accounts...)
}
