package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/abflash-io/abflash/internal/flasher/device"
	"github.com/abflash-io/abflash/internal/flasher/progress"
	"github.com/abflash-io/abflash/internal/flasher/recognition"
	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/pkg/metrics"
)

const (
	// bootloaderPartition is erased on the current slot before any write,
	// forcing the device into its recovery path instead of booting a
	// half-written bootloader if the process is interrupted mid-flash.
	bootloaderPartition = "bootloader"

	// userDataPartition receives the erase sentinel. Not slot-suffixed.
	userDataPartition = "userdata"

	// resetMarker is the literal the device firmware scans for at the head
	// of the user-data partition to trigger a factory reset.
	resetMarker = "factory_rst"

	// eraseSentinelSize is the exact payload length the device expects.
	eraseSentinelSize = 28

	// eraseCheckpoint is the progress value published after the sentinel
	// write, before the reset is issued.
	eraseCheckpoint = 0.9

	// unknownSerial is published when the driver reports no serial.
	unknownSerial = "unknown"
)

// EraseSentinel builds the fixed payload written to the user-data
// partition: the reset marker zero-padded to exactly 28 bytes.
func EraseSentinel() []byte {
	buf := make([]byte, eraseSentinelSize)
	copy(buf, resetMarker)
	return buf
}

func (s *Session) observePhase(phase string) func() {
	start := time.Now()
	return func() {
		metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

// newTracker resets the published progress to 0 and returns the phase
// aggregator feeding it.
func (s *Session) newTracker() *progress.Tracker {
	return progress.NewTracker(len(s.man.Images), s.st.Progress.Set)
}

// connectPhase waits for the device, gates it through recognition and
// captures the connection identity.
func (s *Session) connectPhase(ctx context.Context) error {
	defer s.observePhase("connect")()

	s.st.Message.Set("Waiting for device")
	if err := s.drv.WaitForConnect(ctx); err != nil {
		return &Failure{Code: state.ErrLostConnection, Cause: err}
	}

	slotCount, partitions, err := s.drv.PartitionsInfo(ctx)
	if err != nil {
		return &Failure{Code: state.ErrLostConnection, Cause: err}
	}

	if !recognition.Validate(slotCount, partitions) {
		return failf(state.ErrUnrecognizedDevice,
			"device rejected: %d slots, %d partitions reported", slotCount, len(partitions))
	}

	serial := s.drv.Serial()
	if serial == "" {
		serial = unknownSerial
	}
	s.st.Serial.Set(serial)
	s.st.Connected.Set(true)
	s.logger.Info("Device recognized", "serial", serial, "partitions", len(partitions))
	return nil
}

// downloadPhase pulls every manifest image in order, aborting on the first
// failure; remaining images are abandoned.
func (s *Session) downloadPhase(ctx context.Context) error {
	defer s.observePhase("download")()
	tracker := s.newTracker()

	for i, img := range s.man.Images {
		s.st.Message.Set(fmt.Sprintf("Downloading %s (%d/%d)", img.Name, i+1, len(s.man.Images)))
		if err := s.wrk.DownloadImage(ctx, img, tracker.Item(i)); err != nil {
			return &Failure{Code: state.ErrDownloadFailed, Cause: err}
		}
	}

	tracker.Done()
	return nil
}

// unpackPhase unpacks every image in order. The worker's structured
// failure discriminant decides between the checksum and the generic code.
func (s *Session) unpackPhase(ctx context.Context) error {
	defer s.observePhase("unpack")()
	tracker := s.newTracker()

	for i, img := range s.man.Images {
		s.st.Message.Set(fmt.Sprintf("Unpacking %s (%d/%d)", img.Name, i+1, len(s.man.Images)))
		if err := s.wrk.UnpackImage(ctx, img, tracker.Item(i)); err != nil {
			return &Failure{Code: unpackCode(err), Cause: err}
		}
	}

	tracker.Done()
	return nil
}

// flashPhase writes every image to the inactive slot and switches the
// active-slot pointer. The current slot is never written.
func (s *Session) flashPhase(ctx context.Context) error {
	defer s.observePhase("flash")()
	tracker := s.newTracker()

	raw, err := s.drv.ActiveSlot(ctx)
	if err != nil {
		return &Failure{Code: state.ErrFlashFailed, Cause: err}
	}

	// Anything but the two known identifiers is fatal before any write
	// occurs; guessing a target slot could destroy the bootable slot.
	current, err := device.ParseSlot(raw)
	if err != nil {
		return &Failure{Code: state.ErrFlashFailed, Cause: err}
	}
	target := current.Other()
	s.logger.Info("Flashing inactive slot", "current", string(current), "target", string(target))

	s.st.Message.Set("Preparing slot " + string(target))
	if err := s.drv.Erase(ctx, bootloaderPartition+"_"+string(current)); err != nil {
		return &Failure{Code: state.ErrFlashFailed, Cause: err}
	}

	for i, img := range s.man.Images {
		partition := img.Name + "_" + string(target)
		s.st.Message.Set(fmt.Sprintf("Writing %s (%d/%d)", partition, i+1, len(s.man.Images)))

		payload, size, err := s.wrk.Image(img)
		if err != nil {
			return &Failure{Code: state.ErrFlashFailed, Cause: err}
		}

		err = s.drv.FlashBlob(ctx, partition, payload, size, tracker.Item(i))
		payload.Close()
		if err != nil {
			return &Failure{Code: state.ErrFlashFailed, Cause: err}
		}
		if size > 0 {
			metrics.BytesFlashed.Add(float64(size))
		}
	}

	if err := s.drv.SetActiveSlot(ctx, target); err != nil {
		return &Failure{Code: state.ErrFlashFailed, Cause: err}
	}

	tracker.Done()
	return nil
}

// erasePhase writes the reset sentinel to the user-data partition and
// resets the device.
func (s *Session) erasePhase(ctx context.Context) error {
	defer s.observePhase("erase")()
	s.st.Progress.Set(0)

	s.st.Message.Set("Erasing user data")
	sentinel := EraseSentinel()
	if err := s.drv.FlashBlob(ctx, userDataPartition, bytes.NewReader(sentinel), int64(len(sentinel)), nil); err != nil {
		return &Failure{Code: state.ErrEraseFailed, Cause: err}
	}
	s.st.Progress.Set(eraseCheckpoint)

	s.st.Message.Set("Restarting device")
	if err := s.drv.Reset(ctx); err != nil {
		return &Failure{Code: state.ErrEraseFailed, Cause: err}
	}

	s.st.Progress.Set(1)
	s.st.Connected.Set(false)
	return nil
}
