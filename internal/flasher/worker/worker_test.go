package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/abflash-io/abflash/internal/flasher/manifest"
)

type fakeStore struct {
	objects map[string][]byte
	checked bool
}

func (f *fakeStore) Fetch(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, -1, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeStore) Check(context.Context) error {
	f.checked = true
	return nil
}

func gzipped(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func newTestWorker(t *testing.T, st *fakeStore) *ImageWorker {
	t.Helper()
	w := New(st, t.TempDir())
	t.Cleanup(w.Close)
	return w
}

func TestDownloadUnpackImage(t *testing.T) {
	payload := bytes.Repeat([]byte("firmware"), 512)
	st := &fakeStore{objects: map[string][]byte{
		"boot.img.gz": gzipped(t, payload),
	}}
	w := newTestWorker(t, st)
	ctx := context.Background()

	img := manifest.ImageDescriptor{
		Name:   "boot",
		Object: "boot.img.gz",
		Size:   int64(len(payload)),
		SHA256: digest(payload),
	}

	if err := w.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !st.checked {
		t.Error("Init did not check the store")
	}

	var dlLast float64
	if err := w.DownloadImage(ctx, img, func(f float64) { dlLast = f }); err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	if dlLast != 1 {
		t.Errorf("download progress ended at %v, want 1", dlLast)
	}

	var upLast float64
	if err := w.UnpackImage(ctx, img, func(f float64) { upLast = f }); err != nil {
		t.Fatalf("UnpackImage: %v", err)
	}
	if upLast != 1 {
		t.Errorf("unpack progress ended at %v, want 1", upLast)
	}

	r, size, err := w.Image(img)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(payload)) || !bytes.Equal(got, payload) {
		t.Errorf("unpacked payload differs (size %d, want %d)", size, len(payload))
	}
}

func TestUnpackChecksumMismatch(t *testing.T) {
	payload := []byte("expected contents")
	st := &fakeStore{objects: map[string][]byte{
		"boot.img.gz": gzipped(t, []byte("tampered contents")),
	}}
	w := newTestWorker(t, st)
	ctx := context.Background()

	img := manifest.ImageDescriptor{
		Name: "boot", Object: "boot.img.gz", SHA256: digest(payload),
	}

	if err := w.DownloadImage(ctx, img, nil); err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}

	err := w.UnpackImage(ctx, img, nil)
	if err == nil {
		t.Fatal("expected checksum mismatch")
	}
	if !IsChecksumMismatch(err) {
		t.Fatalf("error %v does not carry the checksum discriminant", err)
	}

	var ue *UnpackError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not an *UnpackError", err)
	}
	if ue.Image != "boot" {
		t.Errorf("UnpackError image = %q, want boot", ue.Image)
	}
}

func TestUnpackGarbageArchiveIsGeneric(t *testing.T) {
	st := &fakeStore{objects: map[string][]byte{
		"boot.img.gz": []byte("this is not gzip"),
	}}
	w := newTestWorker(t, st)
	ctx := context.Background()

	img := manifest.ImageDescriptor{Name: "boot", Object: "boot.img.gz"}

	if err := w.DownloadImage(ctx, img, nil); err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}

	err := w.UnpackImage(ctx, img, nil)
	if err == nil {
		t.Fatal("expected unpack failure")
	}
	if IsChecksumMismatch(err) {
		t.Fatal("garbage archive must not be reported as checksum mismatch")
	}
	var ue *UnpackError
	if !errors.As(err, &ue) || ue.Kind != KindGeneric {
		t.Fatalf("expected generic UnpackError, got %v", err)
	}
}

func TestDownloadMissingObject(t *testing.T) {
	st := &fakeStore{objects: map[string][]byte{}}
	w := newTestWorker(t, st)

	img := manifest.ImageDescriptor{Name: "boot", Object: "boot.img.gz"}
	if err := w.DownloadImage(context.Background(), img, nil); err == nil {
		t.Fatal("expected download failure for missing object")
	}
}

func TestImageBeforeUnpackFails(t *testing.T) {
	st := &fakeStore{objects: map[string][]byte{}}
	w := newTestWorker(t, st)

	img := manifest.ImageDescriptor{Name: "boot", Object: "boot.img.gz"}
	if _, _, err := w.Image(img); err == nil {
		t.Fatal("expected error reading an image that was never unpacked")
	}
}
