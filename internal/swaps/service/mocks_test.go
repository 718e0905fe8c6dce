package service

import (
	"context"
	"io"
	"sync"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	mongotx "github.com/pranaytiwariii/SlotSwapper/pkg/db/mongo"
	"github.com/pranaytiwariii/SlotSwapper/pkg/kafka"
	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Log: logger.New(logger.Config{
			Level:  logger.ERROR,
			Format: logger.TEXT,
			Output: io.Discard,
		}),
	}
}

type mockSlotRepo struct {
	createFn                  func(ctx context.Context, slot *model.Slot) error
	findByIDFn                func(ctx context.Context, id string) (*model.Slot, error)
	findByOwnerFn             func(ctx context.Context, ownerID string) ([]*model.Slot, error)
	findSwappableExcludingFn  func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.SlotWithOwner, error)
	countSwappableExcludingFn func(ctx context.Context, ownerID string) (int64, error)
	updateStatusFn            func(ctx context.Context, id, fromStatus, toStatus string) error
	updateOwnerAndStatusFn    func(ctx context.Context, id, expectedStatus, newOwnerID, newStatus string) error
	deleteFn                  func(ctx context.Context, id string) error
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *model.Slot) error {
	return m.createFn(ctx, slot)
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockSlotRepo) FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	return m.findByOwnerFn(ctx, ownerID)
}

func (m *mockSlotRepo) FindSwappableExcluding(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.SlotWithOwner, error) {
	return m.findSwappableExcludingFn(ctx, ownerID, limit, offset)
}

func (m *mockSlotRepo) CountSwappableExcluding(ctx context.Context, ownerID string) (int64, error) {
	return m.countSwappableExcludingFn(ctx, ownerID)
}

func (m *mockSlotRepo) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	return m.updateStatusFn(ctx, id, fromStatus, toStatus)
}

func (m *mockSlotRepo) UpdateOwnerAndStatus(ctx context.Context, id, expectedStatus, newOwnerID, newStatus string) error {
	return m.updateOwnerAndStatusFn(ctx, id, expectedStatus, newOwnerID, newStatus)
}

func (m *mockSlotRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// mockSwapRequestRepo runs transactions by invoking the callback with a
// bare session context, so service logic executes exactly as in production
// minus the commit machinery.
type mockSwapRequestRepo struct {
	createFn                   func(ctx context.Context, request *model.SwapRequest) error
	findByIDFn                 func(ctx context.Context, id string) (*model.SwapRequest, error)
	findPendingForPairFn       func(ctx context.Context, slotA, slotB string) (*model.SwapRequest, error)
	findPendingInvolvingUserFn func(ctx context.Context, userID string) ([]*model.PendingSwap, error)
	updateStatusFn             func(ctx context.Context, id, fromStatus, toStatus string, respondedAt time.Time) error
}

func (m *mockSwapRequestRepo) Create(ctx context.Context, request *model.SwapRequest) error {
	return m.createFn(ctx, request)
}

func (m *mockSwapRequestRepo) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockSwapRequestRepo) FindPendingForPair(ctx context.Context, slotA, slotB string) (*model.SwapRequest, error) {
	if m.findPendingForPairFn == nil {
		return nil, swapserrors.ErrRequestNotFound
	}
	return m.findPendingForPairFn(ctx, slotA, slotB)
}

func (m *mockSwapRequestRepo) FindPendingInvolvingUser(ctx context.Context, userID string) ([]*model.PendingSwap, error) {
	return m.findPendingInvolvingUserFn(ctx, userID)
}

func (m *mockSwapRequestRepo) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, respondedAt time.Time) error {
	return m.updateStatusFn(ctx, id, fromStatus, toStatus, respondedAt)
}

func (m *mockSwapRequestRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	addTaskFn    func(ctx context.Context, userID, slotID string) error
	removeTaskFn func(ctx context.Context, userID, slotID string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockUserRepo) AddTask(ctx context.Context, userID, slotID string) error {
	if m.addTaskFn == nil {
		return nil
	}
	return m.addTaskFn(ctx, userID, slotID)
}

func (m *mockUserRepo) RemoveTask(ctx context.Context, userID, slotID string) error {
	if m.removeTaskFn == nil {
		return nil
	}
	return m.removeTaskFn(ctx, userID, slotID)
}

type mockTxManager struct{}

func (m *mockTxManager) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockPublisher struct {
	mu        sync.Mutex
	published []kafka.Message
}

func (m *mockPublisher) Publish(_ context.Context, msg kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, msg)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}
