// Package device abstracts the point-to-point connection to the target
// hardware: slot introspection and switching, partition erase/write and
// reset.
package device

import (
	"context"
	"fmt"
	"io"
)

// Slot identifies one of the two redundant A/B partition sets.
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

// Other returns the complement slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// ParseSlot accepts exactly the two known slot identifiers. Anything else
// is fatal for the caller: flashing must never guess a target slot.
func ParseSlot(raw string) (Slot, error) {
	switch Slot(raw) {
	case SlotA:
		return SlotA, nil
	case SlotB:
		return SlotB, nil
	}
	return "", fmt.Errorf("unrecognized slot identifier %q", raw)
}

// Driver is the connection-scoped handle to one attached device. All calls
// are serialized by the session; a Driver is never used concurrently.
type Driver interface {
	// WaitForConnect suspends until a device attaches.
	WaitForConnect(ctx context.Context) error

	// PartitionsInfo reads the slot count and the reported partition names.
	// Read once per connection attempt.
	PartitionsInfo(ctx context.Context) (slotCount int, partitions []string, err error)

	// ActiveSlot reports the raw active-slot value as the device reports
	// it. Callers must ParseSlot it; devices have been seen reporting
	// garbage here.
	ActiveSlot(ctx context.Context) (string, error)

	// SetActiveSlot switches the boot pointer.
	SetActiveSlot(ctx context.Context, slot Slot) error

	// Erase wipes a partition.
	Erase(ctx context.Context, partition string) error

	// FlashBlob writes payload to a partition, reporting fractional
	// progress through onProgress (which may be nil).
	FlashBlob(ctx context.Context, partition string, payload io.Reader, size int64, onProgress func(float64)) error

	// Reset reboots the device.
	Reset(ctx context.Context) error

	// Serial returns the connection-scoped serial identifier, or "" if the
	// device did not report one.
	Serial() string
}
