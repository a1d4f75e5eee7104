package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/abflash-io/abflash/pkg/log"
)

// infoFileName marks an attached device: the driver considers the device
// connected once this file exists under the device directory.
const infoFileName = "device.json"

// deviceInfo is the on-disk description of the simulated device.
type deviceInfo struct {
	Serial     string   `json:"serial"`
	SlotCount  int      `json:"slotCount"`
	ActiveSlot string   `json:"activeSlot"`
	Partitions []string `json:"partitions"`
}

// FileDriver drives a device simulated by a directory tree: one file per
// partition under partitions/, the device description in device.json.
// It backs development setups and the test suite; the wire-level fastboot
// driver satisfies the same interface.
type FileDriver struct {
	dir    string
	serial string
}

var _ Driver = (*FileDriver)(nil)

// NewFileDriver creates a driver rooted at dir. The directory does not
// need to exist yet; attach is detected via WaitForConnect.
func NewFileDriver(dir string) *FileDriver {
	return &FileDriver{dir: dir}
}

func (d *FileDriver) infoPath() string {
	return filepath.Join(d.dir, infoFileName)
}

func (d *FileDriver) partitionPath(name string) string {
	return filepath.Join(d.dir, "partitions", name)
}

func (d *FileDriver) readInfo() (*deviceInfo, error) {
	raw, err := os.ReadFile(d.infoPath())
	if err != nil {
		return nil, fmt.Errorf("device not readable: %w", err)
	}
	var info deviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("malformed device description: %w", err)
	}
	return &info, nil
}

func (d *FileDriver) writeInfo(info *deviceInfo) error {
	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.infoPath(), raw, 0o644)
}

// WaitForConnect blocks until device.json appears under the device
// directory, using fsnotify on the directory rather than polling.
func (d *FileDriver) WaitForConnect(ctx context.Context) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("cannot prepare device directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot watch device directory: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("cannot watch device directory: %w", err)
	}

	// The device may already be attached; check after the watch is armed
	// so an attach between the two cannot be missed.
	if d.attached() && d.captureSerial() == nil {
		return nil
	}

	log.Info("Waiting for device attach", "dir", d.dir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			return fmt.Errorf("device watch failed: %w", err)
		case ev := <-watcher.Events:
			if ev.Name != d.infoPath() {
				continue
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !d.attached() {
				continue
			}
			// The Create event arrives while the writer may still be
			// filling the file; a short or unparseable read here is not a
			// failed attach. The writer's Write events re-trigger the
			// check, so keep waiting instead of failing.
			if err := d.captureSerial(); err != nil {
				log.Debug("Device description not readable yet", "err", err)
				continue
			}
			return nil
		}
	}
}

func (d *FileDriver) attached() bool {
	_, err := os.Stat(d.infoPath())
	return err == nil
}

func (d *FileDriver) captureSerial() error {
	info, err := d.readInfo()
	if err != nil {
		return err
	}
	d.serial = info.Serial
	log.Info("Device attached", "serial", d.serial)
	return nil
}

func (d *FileDriver) PartitionsInfo(ctx context.Context) (int, []string, error) {
	info, err := d.readInfo()
	if err != nil {
		return 0, nil, err
	}
	return info.SlotCount, info.Partitions, nil
}

func (d *FileDriver) ActiveSlot(ctx context.Context) (string, error) {
	info, err := d.readInfo()
	if err != nil {
		return "", err
	}
	return info.ActiveSlot, nil
}

func (d *FileDriver) SetActiveSlot(ctx context.Context, slot Slot) error {
	info, err := d.readInfo()
	if err != nil {
		return err
	}
	info.ActiveSlot = string(slot)
	return d.writeInfo(info)
}

func (d *FileDriver) Erase(ctx context.Context, partition string) error {
	path := d.partitionPath(partition)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}

func (d *FileDriver) FlashBlob(ctx context.Context, partition string, payload io.Reader, size int64, onProgress func(float64)) error {
	path := d.partitionPath(partition)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var written int64
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := payload.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if onProgress != nil && size > 0 {
				onProgress(float64(written) / float64(size))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return f.Sync()
}

func (d *FileDriver) Reset(ctx context.Context) error {
	// A real device drops off the bus at this point; the simulated one
	// records the request and detaches by removing its description.
	if err := os.WriteFile(filepath.Join(d.dir, "reset-requested"), nil, 0o644); err != nil {
		return err
	}
	return os.Remove(d.infoPath())
}

func (d *FileDriver) Serial() string {
	return d.serial
}
