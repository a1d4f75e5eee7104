package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/abflash-io/abflash/internal/flasher/manifest"
	"github.com/abflash-io/abflash/pkg/log"
)

func (w *ImageWorker) doInit(ctx context.Context) error {
	if err := os.MkdirAll(w.scratch, 0o755); err != nil {
		return fmt.Errorf("scratch directory unavailable: %w", err)
	}

	// Prove the directory is actually writable, not just present.
	probe, err := os.CreateTemp(w.scratch, ".probe-*")
	if err != nil {
		return fmt.Errorf("scratch directory not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	if err := w.st.Check(ctx); err != nil {
		return fmt.Errorf("firmware store unavailable: %w", err)
	}
	return nil
}

func (w *ImageWorker) doDownload(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error {
	src, size, err := w.st.Fetch(ctx, img.Object)
	if err != nil {
		return fmt.Errorf("download of %s failed: %w", img.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(w.packedPath(img))
	if err != nil {
		return fmt.Errorf("cannot create archive for %s: %w", img.Name, err)
	}
	defer dst.Close()

	var written int64
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("cannot write archive for %s: %w", img.Name, werr)
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
			return fmt.Errorf("download of %s failed: %w", img.Name, rerr)
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	log.Debug("Image downloaded", "image", img.Name, "bytes", written)
	return nil
}

func (w *ImageWorker) doUnpack(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error {
	packed, err := os.Open(w.packedPath(img))
	if err != nil {
		return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: err}
	}
	defer packed.Close()

	gz, err := gzip.NewReader(packed)
	if err != nil {
		return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: err}
	}
	defer gz.Close()

	dst, err := os.Create(w.unpackedPath(img))
	if err != nil {
		return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: err}
	}
	defer dst.Close()

	hash := sha256.New()
	var written int64
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: err}
		}

		n, rerr := gz.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: werr}
			}
			hash.Write(buf[:n])
			written += int64(n)
			if onProgress != nil && img.Size > 0 {
				onProgress(float64(written) / float64(img.Size))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return &UnpackError{Kind: KindGeneric, Image: img.Name, Err: rerr}
		}
	}

	if img.SHA256 != "" {
		digest := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(digest, img.SHA256) {
			return &UnpackError{
				Kind:  KindChecksumMismatch,
				Image: img.Name,
				Err:   fmt.Errorf("digest %s does not match manifest %s", digest, img.SHA256),
			}
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	log.Debug("Image unpacked", "image", img.Name, "bytes", written)
	return nil
}
