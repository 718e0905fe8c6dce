package service

import (
	"context"
	"errors"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/repository"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/validator"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	mongotx "github.com/pranaytiwariii/SlotSwapper/pkg/db/mongo"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"
	"github.com/pranaytiwariii/SlotSwapper/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type SlotService interface {
	Create(ctx context.Context, ownerID string, slot *model.Slot) (*model.Slot, error)
	GetByID(ctx context.Context, userID, slotID string) (*model.Slot, error)
	ListMine(ctx context.Context, ownerID string) ([]*model.Slot, error)
	SetStatus(ctx context.Context, ownerID, slotID string, update *model.SlotStatusUpdate) (*model.Slot, error)
	Delete(ctx context.Context, ownerID, slotID string) error
}

type slotService struct {
	cfg       *config.Config
	slots     repository.SlotRepository
	users     repository.UserRepository
	txManager mongotx.TransactionManager
	validator *validator.SwapValidator
	publisher EventPublisher
}

func NewSlotService(
	cfg *config.Config,
	slots repository.SlotRepository,
	users repository.UserRepository,
	txManager mongotx.TransactionManager,
	v *validator.SwapValidator,
	publisher EventPublisher,
) SlotService {
	return &slotService{
		cfg:       cfg,
		slots:     slots,
		users:     users,
		txManager: txManager,
		validator: v,
		publisher: publisher,
	}
}

// Create inserts a slot and records it in the owner's task index in one
// transaction. SWAP_PENDING is engine-owned and cannot be set directly.
func (s *slotService) Create(ctx context.Context, ownerID string, slot *model.Slot) (*model.Slot, error) {
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	slot.OwnerID = ownerID
	slot.Title = sanitizer.NormalizeTitle(slot.Title)
	slot.Description = sanitizer.NormalizeDescription(slot.Description)
	if slot.Status == "" {
		slot.Status = config.SlotSwappable
	}
	if slot.Status == config.SlotSwapPending {
		return nil, apperrors.Validation("A slot cannot be created in SWAP_PENDING status", nil)
	}

	if err := s.validator.ValidateSlot(slot); err != nil {
		return nil, apperrors.Validation("Invalid slot", map[string]any{"errors": err.Error()})
	}

	err := s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.slots.Create(sessCtx, slot); err != nil {
			return apperrors.Internal("Failed to create slot", err)
		}
		if err := s.users.AddTask(sessCtx, ownerID, slot.ID); err != nil {
			if errors.Is(err, swapserrors.ErrUserNotFound) {
				return apperrors.NotFoundWithID("User", ownerID)
			}
			return apperrors.Internal("Failed to update user task index", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Slot created", "slot_id", slot.ID, "owner_id", ownerID)
	publishEvent(ctx, s.publisher, s.cfg.Log, EventSlotCreated, slot.ID, SlotEvent{
		SlotID:     slot.ID,
		OwnerID:    ownerID,
		Status:     slot.Status,
		OccurredAt: time.Now().UTC(),
	})

	return slot, nil
}

func (s *slotService) GetByID(ctx context.Context, userID, slotID string) (*model.Slot, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		return nil, s.classifySlotError(err, slotID)
	}

	return slot, nil
}

func (s *slotService) ListMine(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	slots, err := s.slots.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch slots", err)
	}
	if slots == nil {
		slots = []*model.Slot{}
	}

	return slots, nil
}

// SetStatus toggles an owned slot between SWAPPABLE and BUSY. A slot held
// by a pending swap request stays frozen until the request resolves.
func (s *slotService) SetStatus(ctx context.Context, ownerID, slotID string, update *model.SlotStatusUpdate) (*model.Slot, error) {
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		return nil, apperrors.Validation("Invalid status update", map[string]any{"errors": err.Error()})
	}

	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		return nil, s.classifySlotError(err, slotID)
	}
	if slot.OwnerID != ownerID {
		return nil, apperrors.Forbidden("You can only update your own slots")
	}
	if slot.Status == config.SlotSwapPending {
		return nil, apperrors.Conflict("Slot is locked by a pending swap request")
	}
	if slot.Status == update.Status {
		return slot, nil
	}

	if err := s.slots.UpdateStatus(ctx, slotID, slot.Status, update.Status); err != nil {
		if errors.Is(err, swapserrors.ErrStatusConflict) {
			return nil, apperrors.Conflict("Slot status changed concurrently")
		}
		return nil, s.classifySlotError(err, slotID)
	}

	slot.Status = update.Status
	s.cfg.Log.Info("Slot status updated", "slot_id", slotID, "owner_id", ownerID, "status", update.Status)

	return slot, nil
}

// Delete removes an owned slot and its task index entry together. Slots
// locked by a pending swap request cannot be deleted.
func (s *slotService) Delete(ctx context.Context, ownerID, slotID string) error {
	if ownerID == "" {
		return apperrors.Unauthorized("Authentication required")
	}

	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		return s.classifySlotError(err, slotID)
	}
	if slot.OwnerID != ownerID {
		return apperrors.Forbidden("You can only delete your own slots")
	}
	if slot.Status == config.SlotSwapPending {
		return apperrors.Conflict("Slot is locked by a pending swap request")
	}

	err = s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.slots.Delete(sessCtx, slotID); err != nil {
			if errors.Is(err, swapserrors.ErrSlotNotFound) {
				return apperrors.NotFoundWithID("Slot", slotID)
			}
			return apperrors.Internal("Failed to delete slot", err)
		}
		if err := s.users.RemoveTask(sessCtx, ownerID, slotID); err != nil {
			if errors.Is(err, swapserrors.ErrUserNotFound) {
				return apperrors.InconsistentState("Slot owner is missing from the user index", err)
			}
			return apperrors.Internal("Failed to update user task index", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Slot deleted", "slot_id", slotID, "owner_id", ownerID)
	publishEvent(ctx, s.publisher, s.cfg.Log, EventSlotDeleted, slotID, SlotEvent{
		SlotID:     slotID,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

func (s *slotService) classifySlotError(err error, slotID string) error {
	if errors.Is(err, swapserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid slot id")
	}
	if errors.Is(err, swapserrors.ErrSlotNotFound) {
		return apperrors.NotFoundWithID("Slot", slotID)
	}
	return apperrors.Internal("Failed to fetch slot", err)
}
