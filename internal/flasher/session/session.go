// Package session implements the flash-session state machine: phase
// sequencing, slot-switch safety, progress aggregation and the error
// taxonomy of a destructive dual-slot firmware update.
package session

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/abflash-io/abflash/internal/flasher/device"
	"github.com/abflash-io/abflash/internal/flasher/manifest"
	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/flasher/store"
	"github.com/abflash-io/abflash/internal/flasher/worker"
	"github.com/abflash-io/abflash/internal/pkg/metrics"
	"github.com/abflash-io/abflash/pkg/log"
)

// Events driving the step machine. Each marks the completion of the work
// that precedes the destination step.
const (
	eventInitialized = "event_initialized"
	eventStart       = "event_start"
	eventConnected   = "event_connected"
	eventDownloaded  = "event_downloaded"
	eventUnpacked    = "event_unpacked"
	eventFlashed     = "event_flashed"
	eventErased      = "event_erased"
)

var stepByName = map[string]state.Step{
	state.StepInitializing.String(): state.StepInitializing,
	state.StepReady.String():        state.StepReady,
	state.StepConnecting.String():   state.StepConnecting,
	state.StepDownloading.String():  state.StepDownloading,
	state.StepUnpacking.String():    state.StepUnpacking,
	state.StepFlashing.String():     state.StepFlashing,
	state.StepErasing.String():      state.StepErasing,
	state.StepDone.String():         state.StepDone,
}

// Config wires the session to its collaborators.
type Config struct {
	State  *state.Session
	Driver device.Driver
	Worker worker.Worker
	Store  store.Store

	// ManifestKey is the store key of the firmware manifest.
	ManifestKey string

	// AutoStart skips the continue gesture and begins flashing as soon as
	// the session is ready.
	AutoStart bool

	// Restart is armed as the retry hook on failure. Defaults to a full
	// process re-exec.
	Restart func()
}

// Session is the one flash session of this process. It owns the only
// reference to the device handle; all device calls are serialized through
// its phase chain.
type Session struct {
	st  *state.Session
	drv device.Driver
	wrk worker.Worker
	sto store.Store

	manifestKey string
	autoStart   bool
	restart     func()

	machine *fsm.FSM
	man     *manifest.Manifest

	startCh chan struct{}
	logger  log.Logger
}

// New creates a Session from cfg.
func New(cfg Config) *Session {
	s := &Session{
		st:          cfg.State,
		drv:         cfg.Driver,
		wrk:         cfg.Worker,
		sto:         cfg.Store,
		manifestKey: cfg.ManifestKey,
		autoStart:   cfg.AutoStart,
		restart:     cfg.Restart,
		startCh:     make(chan struct{}, 1),
		logger:      log.WithName("session"),
	}
	if s.restart == nil {
		s.restart = Restart
	}

	events := fsm.Events{
		{Name: eventInitialized, Src: []string{state.StepInitializing.String()}, Dst: state.StepReady.String()},
		{Name: eventStart, Src: []string{state.StepReady.String()}, Dst: state.StepConnecting.String()},
		{Name: eventConnected, Src: []string{state.StepConnecting.String()}, Dst: state.StepDownloading.String()},
		{Name: eventDownloaded, Src: []string{state.StepDownloading.String()}, Dst: state.StepUnpacking.String()},
		{Name: eventUnpacked, Src: []string{state.StepUnpacking.String()}, Dst: state.StepFlashing.String()},
		{Name: eventFlashed, Src: []string{state.StepFlashing.String()}, Dst: state.StepErasing.String()},
		{Name: eventErased, Src: []string{state.StepErasing.String()}, Dst: state.StepDone.String()},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			step := stepByName[e.Dst]
			s.st.Step.Set(step)
			metrics.SessionStep.Set(float64(step))
			s.logger.Info("Step changed", "from", e.Src, "to", e.Dst)
		},
	}

	s.machine = fsm.NewFSM(state.StepInitializing.String(), events, callbacks)
	return s
}

// Step returns the current step.
func (s *Session) Step() state.Step {
	return stepByName[s.machine.Current()]
}

func (s *Session) advance(ctx context.Context, event string) {
	if err := s.machine.Event(ctx, event); err != nil {
		// Transitions are only fired after their phase succeeded; a refusal
		// here is a programming error, not a device condition.
		s.logger.Error(err, "Illegal step transition", "event", event, "current", s.machine.Current())
	}
}

// Run executes the session: initialization, the start gate, then the phase
// chain. It returns once the context is cancelled; after a terminal error
// the session stays frozen but keeps publishing state.
func (s *Session) Run(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		s.fail(err)
		<-ctx.Done()
		return nil
	}

	s.advance(ctx, eventInitialized)
	s.st.Message.Set("Ready to flash")

	if s.autoStart {
		s.TriggerStart()
	} else {
		s.st.OnContinue.Set(s.TriggerStart)
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.startCh:
	}

	s.st.OnContinue.Set(nil)

	if err := s.flash(ctx); err != nil {
		s.fail(err)
	}

	<-ctx.Done()
	return nil
}

// TriggerStart fires the user start gesture. Safe to call more than once;
// only the first call takes effect.
func (s *Session) TriggerStart() {
	select {
	case s.startCh <- struct{}{}:
	default:
	}
}

// initialize performs the capability check and loads the manifest.
func (s *Session) initialize(ctx context.Context) error {
	s.st.Message.Set("Checking requirements")

	if err := s.checkRequirements(ctx); err != nil {
		return &Failure{Code: state.ErrRequirementsNotMet, Cause: err}
	}

	man, err := manifest.Load(ctx, s.sto, s.manifestKey)
	if err != nil {
		// Manifest problems have no dedicated code; they surface as Unknown.
		return &Failure{Code: state.ErrUnknown, Cause: err}
	}
	s.man = man
	return nil
}

// checkRequirements verifies the environment capabilities the session
// depends on: a device connection API, a background worker and writable
// persistent storage.
func (s *Session) checkRequirements(ctx context.Context) error {
	if s.drv == nil {
		return failf(state.ErrRequirementsNotMet, "no device connection API available")
	}
	if s.wrk == nil {
		return failf(state.ErrRequirementsNotMet, "no image worker available")
	}
	// Worker init proves the scratch storage is writable and the firmware
	// store reachable.
	return s.wrk.Init(ctx)
}

// flash runs the destructive phase chain. The first failing phase aborts
// the whole chain.
func (s *Session) flash(ctx context.Context) error {
	s.advance(ctx, eventStart)

	if err := s.connectPhase(ctx); err != nil {
		return err
	}
	s.advance(ctx, eventConnected)

	if err := s.downloadPhase(ctx); err != nil {
		return err
	}
	s.advance(ctx, eventDownloaded)

	if err := s.unpackPhase(ctx); err != nil {
		return err
	}
	s.advance(ctx, eventUnpacked)

	if err := s.flashPhase(ctx); err != nil {
		return err
	}
	s.advance(ctx, eventFlashed)

	if err := s.erasePhase(ctx); err != nil {
		return err
	}
	s.advance(ctx, eventErased)

	s.st.Message.Set("Flashing complete")
	s.logger.Info("Session complete", "images", len(s.man.Images))
	return nil
}

// fail publishes the terminal error state: the step freezes where it is,
// progress goes indeterminate, the continue hook is cleared and retry is
// armed to a full process restart. There is no in-place resume; once a
// partition write has begun the process holds no safe partial undo.
func (s *Session) fail(err error) {
	code := translate(err)
	s.logger.Error(err, "Session failed", "code", code.String(), "step", s.machine.Current())

	metrics.SessionErrors.WithLabelValues(code.String()).Inc()

	s.st.Err.Set(code)
	s.st.Progress.Set(-1)
	s.st.OnContinue.Set(nil)
	s.st.OnRetry.Set(state.Hook(s.restart))
}
