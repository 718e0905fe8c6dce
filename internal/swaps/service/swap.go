package service

import (
	"context"
	"errors"
	"sync"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/repository"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/validator"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// SwapService drives the swap request lifecycle. Every mutation that
// touches a request and its two slots runs inside one transaction, so no
// observer ever sees a half-applied exchange.
type SwapService interface {
	Propose(ctx context.Context, requesterID string, proposal *model.SwapProposal) (*model.SwapRequest, error)
	Respond(ctx context.Context, responderID string, decision *model.SwapDecision) (*model.SwapRequest, error)
	Cancel(ctx context.Context, requesterID, requestID string) error
	ListPending(ctx context.Context, userID string) ([]*model.PendingSwap, error)
	ListSwappable(ctx context.Context, userID string, limit int, offset int64) ([]*model.SlotWithOwner, int64, error)
}

type swapService struct {
	cfg       *config.Config
	slots     repository.SlotRepository
	requests  repository.SwapRequestRepository
	users     repository.UserRepository
	validator *validator.SwapValidator
	publisher EventPublisher
}

func NewSwapService(
	cfg *config.Config,
	slots repository.SlotRepository,
	requests repository.SwapRequestRepository,
	users repository.UserRepository,
	v *validator.SwapValidator,
	publisher EventPublisher,
) SwapService {
	return &swapService{
		cfg:       cfg,
		slots:     slots,
		requests:  requests,
		users:     users,
		validator: v,
		publisher: publisher,
	}
}

// Propose opens a negotiation: it inserts a PENDING request and freezes
// both slots to SWAP_PENDING in one transaction. Either everything
// applies, or the proposal never existed.
func (s *swapService) Propose(ctx context.Context, requesterID string, proposal *model.SwapProposal) (*model.SwapRequest, error) {
	if requesterID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateProposal(proposal); err != nil {
		return nil, apperrors.Validation("Invalid swap proposal", map[string]any{"errors": err.Error()})
	}

	request := &model.SwapRequest{
		RequesterID:     requesterID,
		RequesterSlotID: proposal.MySlotID,
		TargetSlotID:    proposal.TheirSlotID,
		Status:          config.SwapPending,
	}

	err := s.requests.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		mySlot, err := s.slots.FindByID(sessCtx, proposal.MySlotID)
		if err != nil {
			return s.classifyProposalSlotError(err, "Your slot was not found")
		}
		if mySlot.OwnerID != requesterID {
			return apperrors.Validation("You can only offer a slot you own", nil)
		}
		if mySlot.Status != config.SlotSwappable {
			return apperrors.Validation("Your slot is not available for swapping", nil)
		}

		theirSlot, err := s.slots.FindByID(sessCtx, proposal.TheirSlotID)
		if err != nil {
			return s.classifyProposalSlotError(err, "The requested slot was not found")
		}
		if theirSlot.OwnerID == requesterID {
			return apperrors.Validation("You cannot request a swap with your own slot", nil)
		}
		if theirSlot.Status != config.SlotSwappable {
			return apperrors.Validation("The requested slot is not available for swapping", nil)
		}

		request.TargetUserID = theirSlot.OwnerID

		// Friendly pre-check; the unique partial index on the pair key is
		// what actually arbitrates racing duplicates.
		if _, err := s.requests.FindPendingForPair(sessCtx, proposal.MySlotID, proposal.TheirSlotID); err == nil {
			return apperrors.Conflict("A pending swap request already exists for these slots")
		} else if !errors.Is(err, swapserrors.ErrRequestNotFound) {
			return apperrors.Internal("Failed to check for existing swap request", err)
		}

		if err := s.requests.Create(sessCtx, request); err != nil {
			if errors.Is(err, swapserrors.ErrDuplicatePending) {
				return apperrors.Conflict("A pending swap request already exists for these slots")
			}
			return apperrors.Internal("Failed to create swap request", err)
		}

		if err := s.slots.UpdateStatus(sessCtx, mySlot.ID, config.SlotSwappable, config.SlotSwapPending); err != nil {
			return s.classifyFreezeError(err, "Your slot")
		}
		if err := s.slots.UpdateStatus(sessCtx, theirSlot.ID, config.SlotSwappable, config.SlotSwapPending); err != nil {
			return s.classifyFreezeError(err, "The requested slot")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Swap request created",
		"request_id", request.ID,
		"requester_id", request.RequesterID,
		"target_user_id", request.TargetUserID,
	)
	publishEvent(ctx, s.publisher, s.cfg.Log, EventSwapProposed, request.ID, swapEventFrom(request))

	return request, nil
}

// Respond resolves a pending request. The status-guarded PENDING
// transition runs first inside the transaction, so of two concurrent
// responders exactly one wins; the loser gets a conflict, never a
// partial exchange.
func (s *swapService) Respond(ctx context.Context, responderID string, decision *model.SwapDecision) (*model.SwapRequest, error) {
	if responderID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateDecision(decision); err != nil {
		return nil, apperrors.Validation("Invalid swap decision", map[string]any{"errors": err.Error()})
	}

	request, err := s.requests.FindByID(ctx, decision.RequestID)
	if err != nil {
		return nil, s.classifyRequestError(err, decision.RequestID)
	}

	if request.TargetUserID != responderID {
		return nil, apperrors.Unauthorized("Only the target of a swap request may respond to it")
	}
	if request.Status != config.SwapPending {
		return nil, apperrors.Conflict("Swap request has already been resolved")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	accepted := decision.Accepted != nil && *decision.Accepted
	if accepted {
		err = s.accept(ctx, request, now)
	} else {
		err = s.reject(ctx, request, now)
	}
	if err != nil {
		return nil, err
	}

	request.RespondedAt = &now
	request.UpdatedAt = now
	if accepted {
		request.Status = config.SwapAccepted
		s.cfg.Log.Info("Swap request accepted", "request_id", request.ID, "responder_id", responderID)
		publishEvent(ctx, s.publisher, s.cfg.Log, EventSwapAccepted, request.ID, swapEventFrom(request))
	} else {
		request.Status = config.SwapRejected
		s.cfg.Log.Info("Swap request rejected", "request_id", request.ID, "responder_id", responderID)
		publishEvent(ctx, s.publisher, s.cfg.Log, EventSwapRejected, request.ID, swapEventFrom(request))
	}

	return request, nil
}

// accept performs the atomic exchange: mark ACCEPTED, hand each slot to
// the other party, settle both to BUSY, and move the slot ids between the
// two users' task indexes.
func (s *swapService) accept(ctx context.Context, request *model.SwapRequest, now time.Time) error {
	return s.requests.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.requests.UpdateStatus(sessCtx, request.ID, config.SwapPending, config.SwapAccepted, now); err != nil {
			if errors.Is(err, swapserrors.ErrStatusConflict) {
				return apperrors.Conflict("Swap request has already been resolved")
			}
			if errors.Is(err, swapserrors.ErrRequestNotFound) {
				return apperrors.InconsistentState("Swap request vanished during acceptance", err)
			}
			return apperrors.Internal("Failed to update swap request", err)
		}

		// The slots were frozen at proposal time. Anything other than two
		// SWAP_PENDING slots here means the store was tampered with outside
		// the engine.
		requesterSlot, err := s.slots.FindByID(sessCtx, request.RequesterSlotID)
		if err != nil {
			return s.classifyAcceptSlotError(err, request.RequesterSlotID)
		}
		targetSlot, err := s.slots.FindByID(sessCtx, request.TargetSlotID)
		if err != nil {
			return s.classifyAcceptSlotError(err, request.TargetSlotID)
		}

		if err := s.slots.UpdateOwnerAndStatus(sessCtx, requesterSlot.ID, config.SlotSwapPending, request.TargetUserID, config.SlotBusy); err != nil {
			return s.classifyAcceptSlotError(err, requesterSlot.ID)
		}
		if err := s.slots.UpdateOwnerAndStatus(sessCtx, targetSlot.ID, config.SlotSwapPending, request.RequesterID, config.SlotBusy); err != nil {
			return s.classifyAcceptSlotError(err, targetSlot.ID)
		}

		if err := s.moveTask(sessCtx, request.RequesterID, request.TargetUserID, request.RequesterSlotID); err != nil {
			return err
		}
		if err := s.moveTask(sessCtx, request.TargetUserID, request.RequesterID, request.TargetSlotID); err != nil {
			return err
		}

		return nil
	})
}

// reject releases both slots back to SWAPPABLE. It runs transactionally
// for the same reason accept does: a rejected request must never leave a
// slot frozen.
func (s *swapService) reject(ctx context.Context, request *model.SwapRequest, now time.Time) error {
	return s.requests.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.requests.UpdateStatus(sessCtx, request.ID, config.SwapPending, config.SwapRejected, now); err != nil {
			if errors.Is(err, swapserrors.ErrStatusConflict) {
				return apperrors.Conflict("Swap request has already been resolved")
			}
			if errors.Is(err, swapserrors.ErrRequestNotFound) {
				return apperrors.InconsistentState("Swap request vanished during rejection", err)
			}
			return apperrors.Internal("Failed to update swap request", err)
		}

		return s.releaseSlots(sessCtx, request)
	})
}

// Cancel lets the requester withdraw a pending proposal before the target
// responds. The slots are released exactly as on rejection.
func (s *swapService) Cancel(ctx context.Context, requesterID, requestID string) error {
	if requesterID == "" {
		return apperrors.Unauthorized("Authentication required")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return s.classifyRequestError(err, requestID)
	}

	if request.RequesterID != requesterID {
		return apperrors.Unauthorized("Only the requester may cancel a swap request")
	}
	if request.Status != config.SwapPending {
		return apperrors.Conflict("Swap request has already been resolved")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	err = s.requests.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.requests.UpdateStatus(sessCtx, request.ID, config.SwapPending, config.SwapCancelled, now); err != nil {
			if errors.Is(err, swapserrors.ErrStatusConflict) {
				return apperrors.Conflict("Swap request has already been resolved")
			}
			if errors.Is(err, swapserrors.ErrRequestNotFound) {
				return apperrors.InconsistentState("Swap request vanished during cancellation", err)
			}
			return apperrors.Internal("Failed to update swap request", err)
		}

		return s.releaseSlots(sessCtx, request)
	})
	if err != nil {
		return err
	}

	request.Status = config.SwapCancelled
	request.RespondedAt = &now
	request.UpdatedAt = now
	s.cfg.Log.Info("Swap request cancelled", "request_id", request.ID, "requester_id", requesterID)
	publishEvent(ctx, s.publisher, s.cfg.Log, EventSwapCancelled, request.ID, swapEventFrom(request))

	return nil
}

func (s *swapService) ListPending(ctx context.Context, userID string) ([]*model.PendingSwap, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	pending, err := s.requests.FindPendingInvolvingUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch pending swap requests", err)
	}
	if pending == nil {
		pending = []*model.PendingSwap{}
	}

	return pending, nil
}

// ListSwappable pages through other users' SWAPPABLE slots. The page and
// the total count are fetched concurrently.
func (s *swapService) ListSwappable(ctx context.Context, userID string, limit int, offset int64) ([]*model.SlotWithOwner, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		wg       sync.WaitGroup
		slots    []*model.SlotWithOwner
		count    int64
		findErr  error
		countErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		slots, findErr = s.slots.FindSwappableExcluding(ctx, userID, limit, offset)
	}()
	go func() {
		defer wg.Done()
		count, countErr = s.slots.CountSwappableExcluding(ctx, userID)
	}()
	wg.Wait()

	if findErr != nil {
		return nil, 0, apperrors.Internal("Failed to fetch swappable slots", findErr)
	}
	if countErr != nil {
		return nil, 0, apperrors.Internal("Failed to count swappable slots", countErr)
	}

	if slots == nil {
		slots = []*model.SlotWithOwner{}
	}

	return slots, count, nil
}

// releaseSlots thaws both sides of a resolved proposal. A slot that is no
// longer SWAP_PENDING here violates the freeze invariant.
func (s *swapService) releaseSlots(sessCtx mongo.SessionContext, request *model.SwapRequest) error {
	if err := s.slots.UpdateStatus(sessCtx, request.RequesterSlotID, config.SlotSwapPending, config.SlotSwappable); err != nil {
		return apperrors.InconsistentState("Failed to release requester slot", err)
	}
	if err := s.slots.UpdateStatus(sessCtx, request.TargetSlotID, config.SlotSwapPending, config.SlotSwappable); err != nil {
		return apperrors.InconsistentState("Failed to release target slot", err)
	}
	return nil
}

// moveTask reassigns a slot id in the derived user index from one user to
// the other. Both updates are idempotent, so transaction retries are safe.
func (s *swapService) moveTask(sessCtx mongo.SessionContext, fromUserID, toUserID, slotID string) error {
	if err := s.users.RemoveTask(sessCtx, fromUserID, slotID); err != nil {
		return apperrors.InconsistentState("Failed to update user task index", err)
	}
	if err := s.users.AddTask(sessCtx, toUserID, slotID); err != nil {
		return apperrors.InconsistentState("Failed to update user task index", err)
	}
	return nil
}

func (s *swapService) classifyProposalSlotError(err error, message string) error {
	if errors.Is(err, swapserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid slot id")
	}
	if errors.Is(err, swapserrors.ErrSlotNotFound) {
		return apperrors.Validation(message, nil)
	}
	return apperrors.Internal("Failed to fetch slot", err)
}

// classifyFreezeError handles a freeze that missed after the slot was read
// inside the same transaction. A status conflict means a concurrent
// proposal won the slot between our snapshots.
func (s *swapService) classifyFreezeError(err error, which string) error {
	if errors.Is(err, swapserrors.ErrStatusConflict) {
		return apperrors.Conflict(which + " is no longer available for swapping")
	}
	if errors.Is(err, swapserrors.ErrSlotNotFound) {
		return apperrors.Conflict(which + " is no longer available for swapping")
	}
	return apperrors.Internal("Failed to reserve slot", err)
}

func (s *swapService) classifyAcceptSlotError(err error, slotID string) error {
	return apperrors.InconsistentState("Slot referenced by accepted swap request is missing or unlocked", err).
		WithDetails(map[string]any{"slot_id": slotID})
}

func (s *swapService) classifyRequestError(err error, requestID string) error {
	if errors.Is(err, swapserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid swap request id")
	}
	if errors.Is(err, swapserrors.ErrRequestNotFound) {
		return apperrors.NotFoundWithID("Swap request", requestID)
	}
	return apperrors.Internal("Failed to fetch swap request", err)
}

func swapEventFrom(request *model.SwapRequest) SwapEvent {
	return SwapEvent{
		RequestID:       request.ID,
		RequesterID:     request.RequesterID,
		TargetUserID:    request.TargetUserID,
		RequesterSlotID: request.RequesterSlotID,
		TargetSlotID:    request.TargetSlotID,
		Status:          request.Status,
		OccurredAt:      time.Now().UTC(),
	}
}
