// Package worker downloads and unpacks firmware images on behalf of the
// flash session. The session talks to it over an asynchronous command
// channel and receives progress notifications through callbacks; the
// worker holds no state the session reads except explicit return values
// and payload handles.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abflash-io/abflash/internal/flasher/manifest"
	"github.com/abflash-io/abflash/internal/flasher/store"
)

// Worker is the image worker interface the session consumes.
type Worker interface {
	// Init prepares the worker (scratch directory, store reachability).
	Init(ctx context.Context) error

	// DownloadImage pulls the packed image archive into the scratch
	// directory, reporting fractional progress.
	DownloadImage(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error

	// UnpackImage decompresses a downloaded archive and verifies its
	// digest. A digest failure surfaces as *UnpackError with
	// KindChecksumMismatch.
	UnpackImage(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error

	// Image opens the unpacked payload of a previously processed image.
	Image(img manifest.ImageDescriptor) (io.ReadCloser, int64, error)

	// Close shuts the worker down. Pending commands are completed first.
	Close()
}

type cmdKind int

const (
	cmdInit cmdKind = iota
	cmdDownload
	cmdUnpack
)

type request struct {
	kind       cmdKind
	ctx        context.Context
	img        manifest.ImageDescriptor
	onProgress func(float64)
	reply      chan error
}

// ImageWorker executes commands strictly sequentially on one goroutine,
// mirroring the one-command-in-flight contract of an off-process worker.
type ImageWorker struct {
	st      store.Store
	scratch string

	requests chan request
	closed   chan struct{}
}

var _ Worker = (*ImageWorker)(nil)

// New creates and starts an ImageWorker using scratchDir for intermediate
// files.
func New(st store.Store, scratchDir string) *ImageWorker {
	w := &ImageWorker{
		st:       st,
		scratch:  scratchDir,
		requests: make(chan request),
		closed:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *ImageWorker) loop() {
	defer close(w.closed)
	for req := range w.requests {
		var err error
		switch req.kind {
		case cmdInit:
			err = w.doInit(req.ctx)
		case cmdDownload:
			err = w.doDownload(req.ctx, req.img, req.onProgress)
		case cmdUnpack:
			err = w.doUnpack(req.ctx, req.img, req.onProgress)
		}
		req.reply <- err
	}
}

func (w *ImageWorker) submit(req request) error {
	req.reply = make(chan error, 1)
	select {
	case w.requests <- req:
	case <-req.ctx.Done():
		return req.ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-w.closed:
		return errors.New("image worker closed")
	}
}

func (w *ImageWorker) Init(ctx context.Context) error {
	return w.submit(request{kind: cmdInit, ctx: ctx})
}

func (w *ImageWorker) DownloadImage(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error {
	return w.submit(request{kind: cmdDownload, ctx: ctx, img: img, onProgress: onProgress})
}

func (w *ImageWorker) UnpackImage(ctx context.Context, img manifest.ImageDescriptor, onProgress func(float64)) error {
	return w.submit(request{kind: cmdUnpack, ctx: ctx, img: img, onProgress: onProgress})
}

func (w *ImageWorker) Image(img manifest.ImageDescriptor) (io.ReadCloser, int64, error) {
	path := w.unpackedPath(img)
	f, err := os.Open(path)
	if err != nil {
		return nil, -1, fmt.Errorf("image %s not unpacked: %w", img.Name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, -1, err
	}
	return f, info.Size(), nil
}

func (w *ImageWorker) Close() {
	close(w.requests)
	<-w.closed
}

func (w *ImageWorker) packedPath(img manifest.ImageDescriptor) string {
	return filepath.Join(w.scratch, filepath.Base(img.Object))
}

func (w *ImageWorker) unpackedPath(img manifest.ImageDescriptor) string {
	return filepath.Join(w.scratch, img.Name+".img")
}
