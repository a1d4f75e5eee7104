package state

import (
	"encoding/json"
	"sync"
)

// Hook is a zero-argument user action armed on the session (the initial
// "tap to begin" gesture, or the retry-after-error action). A nil Hook
// means no action is currently offered.
type Hook func()

// Session is the published state of the one flash session this process
// runs. Every field is independently subscribable with last-value replay.
//
// Exactly one Session exists per process. It is created at startup, lives
// for the process lifetime and is never torn down; a fresh process is the
// only reset path.
type Session struct {
	Step       *Observable[Step]
	Message    *Observable[string]
	Progress   *Observable[float64]
	Err        *Observable[ErrCode]
	Connected  *Observable[bool]
	Serial     *Observable[string]
	OnContinue *Observable[Hook]
	OnRetry    *Observable[Hook]
}

// NewSession creates a fresh session state. Outside of tests, use Default.
func NewSession() *Session {
	return &Session{
		Step:       NewObservable(StepInitializing),
		Message:    NewObservable(""),
		Progress:   NewObservable(0.0),
		Err:        NewObservable(ErrNone),
		Connected:  NewObservable(false),
		Serial:     NewObservable(""),
		OnContinue: NewObservable[Hook](nil),
		OnRetry:    NewObservable[Hook](nil),
	}
}

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the process-wide session state singleton.
func Default() *Session {
	defaultOnce.Do(func() {
		defaultSession = NewSession()
	})
	return defaultSession
}

// Snapshot is a point-in-time JSON view of the session for the HTTP state
// route and the MQTT bridge. Hooks are reported by presence only.
type Snapshot struct {
	Step        int     `json:"step"`
	StepName    string  `json:"stepName"`
	Message     string  `json:"message"`
	Progress    float64 `json:"progress"`
	Error       int     `json:"error"`
	ErrorName   string  `json:"errorName"`
	Connected   bool    `json:"connected"`
	Serial      string  `json:"serial,omitempty"`
	CanContinue bool    `json:"canContinue"`
	CanRetry    bool    `json:"canRetry"`
}

// Snapshot captures the current value of every field.
func (s *Session) Snapshot() Snapshot {
	step := s.Step.Get()
	code := s.Err.Get()
	return Snapshot{
		Step:        int(step),
		StepName:    step.String(),
		Message:     s.Message.Get(),
		Progress:    s.Progress.Get(),
		Error:       int(code),
		ErrorName:   code.String(),
		Connected:   s.Connected.Get(),
		Serial:      s.Serial.Get(),
		CanContinue: s.OnContinue.Get() != nil,
		CanRetry:    s.OnRetry.Get() != nil,
	}
}

// MarshalJSON lets a Session be serialized directly as its snapshot.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
