package config

// Slot statuses. SwapPending is engine-owned: nothing outside the swap
// engine may move a slot into or out of it.
const (
	SlotSwappable   = "SWAPPABLE"
	SlotBusy        = "BUSY"
	SlotSwapPending = "SWAP_PENDING"
)

// Swap request lifecycle. A request leaves Pending exactly once and is
// immutable afterwards.
const (
	SwapPending   = "PENDING"
	SwapAccepted  = "ACCEPTED"
	SwapRejected  = "REJECTED"
	SwapCancelled = "CANCELLED"
)
