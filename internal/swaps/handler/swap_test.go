package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
	"github.com/pranaytiwariii/SlotSwapper/pkg/middleware"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const testUserID = "64b0c8f2a1d3e4f5a6b7c8d1"

type mockSwapService struct {
	proposeFn       func(ctx context.Context, requesterID string, proposal *model.SwapProposal) (*model.SwapRequest, error)
	respondFn       func(ctx context.Context, responderID string, decision *model.SwapDecision) (*model.SwapRequest, error)
	cancelFn        func(ctx context.Context, requesterID, requestID string) error
	listPendingFn   func(ctx context.Context, userID string) ([]*model.PendingSwap, error)
	listSwappableFn func(ctx context.Context, userID string, limit int, offset int64) ([]*model.SlotWithOwner, int64, error)
}

func (m *mockSwapService) Propose(ctx context.Context, requesterID string, proposal *model.SwapProposal) (*model.SwapRequest, error) {
	return m.proposeFn(ctx, requesterID, proposal)
}

func (m *mockSwapService) Respond(ctx context.Context, responderID string, decision *model.SwapDecision) (*model.SwapRequest, error) {
	return m.respondFn(ctx, responderID, decision)
}

func (m *mockSwapService) Cancel(ctx context.Context, requesterID, requestID string) error {
	return m.cancelFn(ctx, requesterID, requestID)
}

func (m *mockSwapService) ListPending(ctx context.Context, userID string) ([]*model.PendingSwap, error) {
	return m.listPendingFn(ctx, userID)
}

func (m *mockSwapService) ListSwappable(ctx context.Context, userID string, limit int, offset int64) ([]*model.SlotWithOwner, int64, error) {
	return m.listSwappableFn(ctx, userID, limit, offset)
}

func handlerConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:  logger.ERROR,
			Format: logger.TEXT,
			Output: io.Discard,
		}),
	}
}

// newTestServer wires the handler behind the identity middleware so the
// X-User-ID header flows into the request context as in production.
func newTestServer(cfg *config.Config, svc *mockSwapService) http.Handler {
	router := httprouter.New()
	NewSwapHandler(cfg, svc).RegisterRoutes(router)
	return middleware.Identity(nil, cfg.Log)(router)
}

func TestProposeEndpointCreated(t *testing.T) {
	svc := &mockSwapService{
		proposeFn: func(_ context.Context, requesterID string, proposal *model.SwapProposal) (*model.SwapRequest, error) {
			if requesterID != testUserID {
				t.Errorf("expected requester %s, got %s", testUserID, requesterID)
			}
			return &model.SwapRequest{
				ID:              "64b0c8f2a1d3e4f5a6b7c8f1",
				RequesterID:     requesterID,
				RequesterSlotID: proposal.MySlotID,
				TargetSlotID:    proposal.TheirSlotID,
				Status:          config.SwapPending,
			}, nil
		},
	}
	server := newTestServer(handlerConfig(), svc)

	body := `{"my_slot_id":"64b0c8f2a1d3e4f5a6b7c8a1","their_slot_id":"64b0c8f2a1d3e4f5a6b7c8a2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swap-requests", strings.NewReader(body))
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Data model.SwapRequest `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Data.Status != config.SwapPending {
		t.Errorf("expected status %s, got %s", config.SwapPending, response.Data.Status)
	}
}

func TestProposeEndpointRequiresIdentity(t *testing.T) {
	server := newTestServer(handlerConfig(), &mockSwapService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/swap-requests", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProposeEndpointBadBody(t *testing.T) {
	server := newTestServer(handlerConfig(), &mockSwapService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/swap-requests", strings.NewReader(`{not json`))
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRespondEndpointConflictMapsTo409(t *testing.T) {
	svc := &mockSwapService{
		respondFn: func(_ context.Context, _ string, _ *model.SwapDecision) (*model.SwapRequest, error) {
			return nil, apperrors.Conflict("Swap request has already been resolved")
		},
	}
	server := newTestServer(handlerConfig(), svc)

	body := `{"request_id":"64b0c8f2a1d3e4f5a6b7c8f1","accepted":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swap-responses", strings.NewReader(body))
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var response struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, response.Code)
	}
}

func TestCancelEndpointNoContent(t *testing.T) {
	svc := &mockSwapService{
		cancelFn: func(_ context.Context, requesterID, requestID string) error {
			if requestID != "64b0c8f2a1d3e4f5a6b7c8f1" {
				t.Errorf("unexpected request id %s", requestID)
			}
			return nil
		},
	}
	server := newTestServer(handlerConfig(), svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/swap-requests/64b0c8f2a1d3e4f5a6b7c8f1", nil)
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestListSwappableEndpointPaginates(t *testing.T) {
	svc := &mockSwapService{
		listSwappableFn: func(_ context.Context, _ string, limit int, offset int64) ([]*model.SlotWithOwner, int64, error) {
			if limit != 5 || offset != 10 {
				t.Errorf("expected limit 5 offset 10, got %d %d", limit, offset)
			}
			return []*model.SlotWithOwner{}, 42, nil
		},
	}
	server := newTestServer(handlerConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swappable-slots?limit=5&offset=10", nil)
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		TotalCount int64 `json:"total_count"`
		Limit      int   `json:"limit"`
		Offset     int64 `json:"offset"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.TotalCount != 42 || response.Limit != 5 || response.Offset != 10 {
		t.Errorf("unexpected pagination envelope: %+v", response)
	}
}

func TestListPendingEndpoint(t *testing.T) {
	svc := &mockSwapService{
		listPendingFn: func(_ context.Context, userID string) ([]*model.PendingSwap, error) {
			if userID != testUserID {
				t.Errorf("expected user %s, got %s", testUserID, userID)
			}
			return []*model.PendingSwap{}, nil
		},
	}
	server := newTestServer(handlerConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swap-requests/pending", nil)
	req.Header.Set(middleware.UserHeader, testUserID)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
