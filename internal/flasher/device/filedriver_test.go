package device

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDevice(t *testing.T, dir string, info deviceInfo) {
	t.Helper()
	raw, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, infoFileName), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		raw     string
		want    Slot
		wantErr bool
	}{
		{"a", SlotA, false},
		{"b", SlotB, false},
		{"", "", true},
		{"c", "", true},
		{"A", "", true},
		{"ab", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSlot(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSlot(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSlot(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestOtherSlot(t *testing.T) {
	if SlotA.Other() != SlotB || SlotB.Other() != SlotA {
		t.Fatal("Other() must return the complement slot")
	}
}

func TestWaitForConnectAlreadyAttached(t *testing.T) {
	dir := t.TempDir()
	writeDevice(t, dir, deviceInfo{Serial: "SN42", SlotCount: 2, ActiveSlot: "a"})

	d := NewFileDriver(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.WaitForConnect(ctx); err != nil {
		t.Fatalf("WaitForConnect: %v", err)
	}
	if d.Serial() != "SN42" {
		t.Errorf("Serial() = %q, want SN42", d.Serial())
	}
}

func TestWaitForConnectDetectsAttach(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "device")
	d := NewFileDriver(dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.WaitForConnect(ctx) }()

	// Give the watcher time to arm, then attach.
	time.Sleep(200 * time.Millisecond)
	writeDevice(t, dir, deviceInfo{Serial: "SN7", SlotCount: 2, ActiveSlot: "b"})

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("WaitForConnect: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("WaitForConnect did not observe attach")
	}
	if d.Serial() != "SN7" {
		t.Errorf("Serial() = %q, want SN7", d.Serial())
	}
}

func TestWaitForConnectToleratesSlowWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "device")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	d := NewFileDriver(dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.WaitForConnect(ctx) }()

	// Give the watcher time to arm.
	time.Sleep(200 * time.Millisecond)

	raw, err := json.Marshal(deviceInfo{Serial: "SN9", SlotCount: 2, ActiveSlot: "a"})
	if err != nil {
		t.Fatal(err)
	}

	// Write the description in two chunks so the Create event observes a
	// truncated file; only the second write completes the JSON.
	f, err := os.Create(filepath.Join(dir, infoFileName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(raw[:len(raw)/2]); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := f.Write(raw[len(raw)/2:]); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("WaitForConnect: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("WaitForConnect did not observe attach")
	}
	if d.Serial() != "SN9" {
		t.Errorf("Serial() = %q, want SN9", d.Serial())
	}
}

func TestPartitionsInfoAndSlotSwitch(t *testing.T) {
	dir := t.TempDir()
	writeDevice(t, dir, deviceInfo{
		Serial: "SN1", SlotCount: 2, ActiveSlot: "a",
		Partitions: []string{"boot_a", "boot_b", "userdata"},
	})

	d := NewFileDriver(dir)
	ctx := context.Background()

	slots, parts, err := d.PartitionsInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if slots != 2 || len(parts) != 3 {
		t.Errorf("PartitionsInfo = (%d, %v)", slots, parts)
	}

	raw, err := d.ActiveSlot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "a" {
		t.Errorf("ActiveSlot = %q, want a", raw)
	}

	if err := d.SetActiveSlot(ctx, SlotB); err != nil {
		t.Fatal(err)
	}
	raw, err = d.ActiveSlot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "b" {
		t.Errorf("ActiveSlot after switch = %q, want b", raw)
	}
}

func TestFlashBlobWritesAndReportsProgress(t *testing.T) {
	dir := t.TempDir()
	d := NewFileDriver(dir)

	payload := bytes.Repeat([]byte{0xAB}, 1024)
	var last float64
	err := d.FlashBlob(context.Background(), "boot_b", bytes.NewReader(payload), int64(len(payload)), func(f float64) {
		if f < last {
			t.Errorf("progress regressed: %v after %v", f, last)
		}
		last = f
	})
	if err != nil {
		t.Fatal(err)
	}
	if last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}

	written, err := os.ReadFile(filepath.Join(dir, "partitions", "boot_b"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, payload) {
		t.Error("flashed bytes differ from payload")
	}
}

func TestEraseTruncatesPartition(t *testing.T) {
	dir := t.TempDir()
	d := NewFileDriver(dir)

	if err := d.FlashBlob(context.Background(), "misc", bytes.NewReader([]byte("junk")), 4, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Erase(context.Background(), "misc"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "partitions", "misc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("erased partition holds %d bytes, want 0", len(data))
	}
}

func TestResetDetachesDevice(t *testing.T) {
	dir := t.TempDir()
	writeDevice(t, dir, deviceInfo{Serial: "SN1", SlotCount: 2, ActiveSlot: "a"})

	d := NewFileDriver(dir)
	if err := d.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, infoFileName)); !os.IsNotExist(err) {
		t.Error("device description still present after reset")
	}
	if _, err := os.Stat(filepath.Join(dir, "reset-requested")); err != nil {
		t.Error("reset marker not written")
	}
}
