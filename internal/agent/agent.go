// Package agent composes the flash session with its outward surfaces: the
// observability HTTP server and the optional MQTT state bridge.
package agent

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abflash-io/abflash/internal/agent/server"
	"github.com/abflash-io/abflash/internal/flasher/session"
	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/flasher/worker"
	"github.com/abflash-io/abflash/pkg/log"
)

// confirmWindow is how long a first interrupt stays armed while a
// destructive phase is running. A second signal inside the window aborts.
const confirmWindow = 5 * time.Second

// Agent is the composed process: one flash session plus its servers.
type Agent struct {
	st     *state.Session
	sess   *session.Session
	wrk    worker.Worker
	srv    *server.Server
	bridge *Bridge
}

// Run starts every component and blocks until the context is cancelled or
// a component fails.
func (a *Agent) Run(parent context.Context) error {
	log.Info("Starting abflash agent")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	a.holdSignals(ctx, cancel)

	defer a.wrk.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.srv.Run(ctx) })
	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Run(ctx) })
	}
	g.Go(func() error { return a.sess.Run(ctx) })

	err := g.Wait()
	log.Info("Agent stopped")
	return err
}

// holdSignals installs interrupt handling. Outside of destructive steps a
// single SIGINT/SIGTERM shuts down; while the device is being written, the
// first signal only warns and a second one within confirmWindow confirms
// the abort.
func (a *Agent) holdSignals(ctx context.Context, cancel context.CancelFunc) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		var armed time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if !a.st.Step.Get().Destructive() {
					log.Info("Shutdown signal received", "signal", sig.String())
					cancel()
					return
				}
				if !armed.IsZero() && time.Since(armed) <= confirmWindow {
					log.Warn("Abort confirmed while flashing, shutting down", "signal", sig.String())
					cancel()
					return
				}
				armed = time.Now()
				log.Warn("Flash in progress; repeat the signal within 5s to abort", "signal", sig.String())
			}
		}
	}()
}
