package service

import (
	"context"
	"sync"
	"testing"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/validator"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"
)

const (
	requesterID = "64b0c8f2a1d3e4f5a6b7c8d1"
	targetID    = "64b0c8f2a1d3e4f5a6b7c8d2"
	strangerID  = "64b0c8f2a1d3e4f5a6b7c8d3"
	mySlotID    = "64b0c8f2a1d3e4f5a6b7c8a1"
	theirSlotID = "64b0c8f2a1d3e4f5a6b7c8a2"
	requestID   = "64b0c8f2a1d3e4f5a6b7c8f1"
)

func boolPtr(b bool) *bool {
	return &b
}

func assertCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", wantCode)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != wantCode {
		t.Fatalf("expected code %s, got %s (%v)", wantCode, appErr.Code, err)
	}
}

func swappableSlot(id, ownerID string) *model.Slot {
	return &model.Slot{
		ID:      id,
		OwnerID: ownerID,
		Title:   "Morning shift",
		Date:    "2026-09-01",
		Start:   "09:00",
		End:     "10:00",
		Status:  config.SlotSwappable,
	}
}

func pendingRequest() *model.SwapRequest {
	return &model.SwapRequest{
		ID:              requestID,
		RequesterID:     requesterID,
		TargetUserID:    targetID,
		RequesterSlotID: mySlotID,
		TargetSlotID:    theirSlotID,
		Status:          config.SwapPending,
	}
}

func newSwapService(slots *mockSlotRepo, requests *mockSwapRequestRepo, users *mockUserRepo, publisher EventPublisher) SwapService {
	cfg := testConfig()
	return NewSwapService(cfg, slots, requests, users, validator.NewSwapValidator(cfg.Log), publisher)
}

func TestProposeFreezesBothSlots(t *testing.T) {
	var frozen []string
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			if id == mySlotID {
				return swappableSlot(mySlotID, requesterID), nil
			}
			return swappableSlot(theirSlotID, targetID), nil
		},
		updateStatusFn: func(_ context.Context, id, fromStatus, toStatus string) error {
			if fromStatus != config.SlotSwappable || toStatus != config.SlotSwapPending {
				t.Errorf("unexpected transition %s -> %s", fromStatus, toStatus)
			}
			frozen = append(frozen, id)
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		createFn: func(_ context.Context, request *model.SwapRequest) error {
			request.ID = requestID
			return nil
		},
	}
	publisher := &mockPublisher{}
	svc := newSwapService(slots, requests, &mockUserRepo{}, publisher)

	request, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if request.Status != config.SwapPending {
		t.Errorf("expected status %s, got %s", config.SwapPending, request.Status)
	}
	if request.TargetUserID != targetID {
		t.Errorf("expected target user %s, got %s", targetID, request.TargetUserID)
	}
	if len(frozen) != 2 {
		t.Fatalf("expected both slots frozen, got %v", frozen)
	}
	if publisher.count() != 1 {
		t.Errorf("expected 1 event, got %d", publisher.count())
	}
}

func TestProposeRejectsUnswappableSlot(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			slot := swappableSlot(id, requesterID)
			slot.Status = config.SlotBusy
			return slot, nil
		},
	}
	svc := newSwapService(slots, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestProposeRejectsSlotNotOwned(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			return swappableSlot(id, strangerID), nil
		},
	}
	svc := newSwapService(slots, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestProposeRejectsOwnTargetSlot(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			return swappableSlot(id, requesterID), nil
		},
	}
	svc := newSwapService(slots, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestProposeRejectsSameSlotTwice(t *testing.T) {
	svc := newSwapService(&mockSlotRepo{}, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: mySlotID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestProposeMissingSlot(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			return nil, swapserrors.ErrSlotNotFound
		},
	}
	svc := newSwapService(slots, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestProposeDuplicatePendingPair(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			if id == mySlotID {
				return swappableSlot(mySlotID, requesterID), nil
			}
			return swappableSlot(theirSlotID, targetID), nil
		},
	}
	requests := &mockSwapRequestRepo{
		createFn: func(_ context.Context, _ *model.SwapRequest) error {
			return swapserrors.ErrDuplicatePending
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestProposeExistingPendingPair(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			if id == mySlotID {
				return swappableSlot(mySlotID, requesterID), nil
			}
			return swappableSlot(theirSlotID, targetID), nil
		},
	}
	requests := &mockSwapRequestRepo{
		findPendingForPairFn: func(_ context.Context, _, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestProposeLosesFreezeRace(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			if id == mySlotID {
				return swappableSlot(mySlotID, requesterID), nil
			}
			return swappableSlot(theirSlotID, targetID), nil
		},
		updateStatusFn: func(_ context.Context, id, _, _ string) error {
			if id == theirSlotID {
				return swapserrors.ErrStatusConflict
			}
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		createFn: func(_ context.Context, request *model.SwapRequest) error {
			request.ID = requestID
			return nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	_, err := svc.Propose(context.Background(), requesterID, &model.SwapProposal{
		MySlotID:    mySlotID,
		TheirSlotID: theirSlotID,
	})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestAcceptExchangesOwnershipAndIndexes(t *testing.T) {
	type handover struct {
		slotID   string
		newOwner string
		status   string
	}
	var handovers []handover
	var indexOps []string
	var persistedAt time.Time

	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			owner := requesterID
			if id == theirSlotID {
				owner = targetID
			}
			slot := swappableSlot(id, owner)
			slot.Status = config.SlotSwapPending
			return slot, nil
		},
		updateOwnerAndStatusFn: func(_ context.Context, id, expectedStatus, newOwnerID, newStatus string) error {
			if expectedStatus != config.SlotSwapPending {
				t.Errorf("expected guard on %s, got %s", config.SlotSwapPending, expectedStatus)
			}
			handovers = append(handovers, handover{id, newOwnerID, newStatus})
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
		updateStatusFn: func(_ context.Context, _, fromStatus, toStatus string, respondedAt time.Time) error {
			if fromStatus != config.SwapPending || toStatus != config.SwapAccepted {
				t.Errorf("unexpected transition %s -> %s", fromStatus, toStatus)
			}
			persistedAt = respondedAt
			return nil
		},
	}
	users := &mockUserRepo{
		addTaskFn: func(_ context.Context, userID, slotID string) error {
			indexOps = append(indexOps, "add:"+userID+":"+slotID)
			return nil
		},
		removeTaskFn: func(_ context.Context, userID, slotID string) error {
			indexOps = append(indexOps, "remove:"+userID+":"+slotID)
			return nil
		},
	}
	publisher := &mockPublisher{}
	svc := newSwapService(slots, requests, users, publisher)

	request, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
		RequestID: requestID,
		Accepted:  boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if request.Status != config.SwapAccepted {
		t.Errorf("expected status %s, got %s", config.SwapAccepted, request.Status)
	}
	if request.RespondedAt == nil || !request.RespondedAt.Equal(persistedAt) {
		t.Errorf("expected responded_at %v on the returned request, got %v", persistedAt, request.RespondedAt)
	}

	want := map[string]handover{
		mySlotID:    {mySlotID, targetID, config.SlotBusy},
		theirSlotID: {theirSlotID, requesterID, config.SlotBusy},
	}
	if len(handovers) != 2 {
		t.Fatalf("expected 2 ownership updates, got %d", len(handovers))
	}
	for _, h := range handovers {
		if want[h.slotID] != h {
			t.Errorf("unexpected handover %+v", h)
		}
	}

	wantOps := map[string]bool{
		"remove:" + requesterID + ":" + mySlotID: true,
		"add:" + targetID + ":" + mySlotID:       true,
		"remove:" + targetID + ":" + theirSlotID: true,
		"add:" + requesterID + ":" + theirSlotID: true,
	}
	if len(indexOps) != len(wantOps) {
		t.Fatalf("expected %d index ops, got %v", len(wantOps), indexOps)
	}
	for _, op := range indexOps {
		if !wantOps[op] {
			t.Errorf("unexpected index op %s", op)
		}
	}

	if publisher.count() != 1 {
		t.Errorf("expected 1 event, got %d", publisher.count())
	}
}

func TestRejectReleasesBothSlots(t *testing.T) {
	var released []string
	slots := &mockSlotRepo{
		updateStatusFn: func(_ context.Context, id, fromStatus, toStatus string) error {
			if fromStatus != config.SlotSwapPending || toStatus != config.SlotSwappable {
				t.Errorf("unexpected transition %s -> %s", fromStatus, toStatus)
			}
			released = append(released, id)
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
		updateStatusFn: func(_ context.Context, _, _, toStatus string, _ time.Time) error {
			if toStatus != config.SwapRejected {
				t.Errorf("expected transition to %s, got %s", config.SwapRejected, toStatus)
			}
			return nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	request, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
		RequestID: requestID,
		Accepted:  boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != config.SwapRejected {
		t.Errorf("expected status %s, got %s", config.SwapRejected, request.Status)
	}
	if request.RespondedAt == nil {
		t.Error("expected responded_at on the returned request")
	}
	if len(released) != 2 {
		t.Errorf("expected both slots released, got %v", released)
	}
}

func TestRespondOnlyTargetMayRespond(t *testing.T) {
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
	}
	svc := newSwapService(&mockSlotRepo{}, requests, &mockUserRepo{}, nil)

	_, err := svc.Respond(context.Background(), strangerID, &model.SwapDecision{
		RequestID: requestID,
		Accepted:  boolPtr(true),
	})
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestRespondAlreadyResolved(t *testing.T) {
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			request := pendingRequest()
			request.Status = config.SwapAccepted
			return request, nil
		},
	}
	svc := newSwapService(&mockSlotRepo{}, requests, &mockUserRepo{}, nil)

	_, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
		RequestID: requestID,
		Accepted:  boolPtr(true),
	})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestRespondMissingDecision(t *testing.T) {
	svc := newSwapService(&mockSlotRepo{}, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	_, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
		RequestID: requestID,
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestAcceptMissingSlotIsInconsistentState(t *testing.T) {
	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Slot, error) {
			return nil, swapserrors.ErrSlotNotFound
		},
	}
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
		updateStatusFn: func(_ context.Context, _, _, _ string, _ time.Time) error {
			return nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	_, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
		RequestID: requestID,
		Accepted:  boolPtr(true),
	})
	assertCode(t, err, apperrors.CodeInconsistentState)
}

// Two responders race on the same pending request. The status-guarded
// transition admits exactly one of them; the other must see a conflict and
// no second exchange may run.
func TestConcurrentAcceptResolvesOnce(t *testing.T) {
	var mu sync.Mutex
	status := config.SwapPending
	exchanges := 0

	slots := &mockSlotRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Slot, error) {
			owner := requesterID
			if id == theirSlotID {
				owner = targetID
			}
			slot := swappableSlot(id, owner)
			slot.Status = config.SlotSwapPending
			return slot, nil
		},
		updateOwnerAndStatusFn: func(_ context.Context, id, _, _, _ string) error {
			if id == mySlotID {
				mu.Lock()
				exchanges++
				mu.Unlock()
			}
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
		updateStatusFn: func(_ context.Context, _, fromStatus, toStatus string, _ time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			if status != fromStatus {
				return swapserrors.ErrStatusConflict
			}
			status = toStatus
			return nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Respond(context.Background(), targetID, &model.SwapDecision{
				RequestID: requestID,
				Accepted:  boolPtr(true),
			})
			results <- err
		}()
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		if apperrors.AsAppError(err).Code == apperrors.CodeConflict {
			conflicts++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected 1 success and 1 conflict, got %d and %d", successes, conflicts)
	}
	if exchanges != 1 {
		t.Fatalf("expected exactly one exchange, got %d", exchanges)
	}
	if status != config.SwapAccepted {
		t.Fatalf("expected final status %s, got %s", config.SwapAccepted, status)
	}
}

func TestCancelReleasesSlots(t *testing.T) {
	var released []string
	slots := &mockSlotRepo{
		updateStatusFn: func(_ context.Context, id, _, toStatus string) error {
			if toStatus != config.SlotSwappable {
				t.Errorf("expected release to %s, got %s", config.SlotSwappable, toStatus)
			}
			released = append(released, id)
			return nil
		},
	}
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
		updateStatusFn: func(_ context.Context, _, _, toStatus string, _ time.Time) error {
			if toStatus != config.SwapCancelled {
				t.Errorf("expected transition to %s, got %s", config.SwapCancelled, toStatus)
			}
			return nil
		},
	}
	svc := newSwapService(slots, requests, &mockUserRepo{}, nil)

	if err := svc.Cancel(context.Background(), requesterID, requestID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(released) != 2 {
		t.Errorf("expected both slots released, got %v", released)
	}
}

func TestCancelOnlyRequesterMayCancel(t *testing.T) {
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			return pendingRequest(), nil
		},
	}
	svc := newSwapService(&mockSlotRepo{}, requests, &mockUserRepo{}, nil)

	err := svc.Cancel(context.Background(), targetID, requestID)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestCancelAlreadyResolved(t *testing.T) {
	requests := &mockSwapRequestRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.SwapRequest, error) {
			request := pendingRequest()
			request.Status = config.SwapRejected
			return request, nil
		},
	}
	svc := newSwapService(&mockSlotRepo{}, requests, &mockUserRepo{}, nil)

	err := svc.Cancel(context.Background(), requesterID, requestID)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestListPendingReturnsEmptySlice(t *testing.T) {
	requests := &mockSwapRequestRepo{
		findPendingInvolvingUserFn: func(_ context.Context, _ string) ([]*model.PendingSwap, error) {
			return nil, nil
		},
	}
	svc := newSwapService(&mockSlotRepo{}, requests, &mockUserRepo{}, nil)

	pending, err := svc.ListPending(context.Background(), requesterID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending == nil || len(pending) != 0 {
		t.Fatalf("expected empty slice, got %v", pending)
	}
}

func TestListSwappableExcludesCallerAndPaginates(t *testing.T) {
	slots := &mockSlotRepo{
		findSwappableExcludingFn: func(_ context.Context, ownerID string, limit int, offset int64) ([]*model.SlotWithOwner, error) {
			if ownerID != requesterID {
				t.Errorf("expected exclusion of %s, got %s", requesterID, ownerID)
			}
			if limit != 5 || offset != 10 {
				t.Errorf("expected limit 5 offset 10, got %d %d", limit, offset)
			}
			return []*model.SlotWithOwner{
				{Slot: *swappableSlot(theirSlotID, targetID)},
			}, nil
		},
		countSwappableExcludingFn: func(_ context.Context, _ string) (int64, error) {
			return 42, nil
		},
	}
	svc := newSwapService(slots, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	result, total, err := svc.ListSwappable(context.Background(), requesterID, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("expected total 42, got %d", total)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 slot, got %d", len(result))
	}
}

func TestUnauthenticatedCallsRejected(t *testing.T) {
	svc := newSwapService(&mockSlotRepo{}, &mockSwapRequestRepo{}, &mockUserRepo{}, nil)

	if _, err := svc.Propose(context.Background(), "", &model.SwapProposal{}); err == nil {
		t.Error("expected error for unauthenticated propose")
	}
	if _, err := svc.ListPending(context.Background(), ""); err == nil {
		t.Error("expected error for unauthenticated list")
	}
	if err := svc.Cancel(context.Background(), "", requestID); err == nil {
		t.Error("expected error for unauthenticated cancel")
	}
}
