package state

// Step is a phase of the flash session. The values form the canonical wire
// numbering: contiguous, stable, ordered by execution.
type Step int

const (
	StepInitializing Step = iota
	StepReady
	StepConnecting
	StepDownloading
	StepUnpacking
	StepFlashing
	StepErasing
	StepDone
)

var stepNames = map[Step]string{
	StepInitializing: "Initializing",
	StepReady:        "Ready",
	StepConnecting:   "Connecting",
	StepDownloading:  "Downloading",
	StepUnpacking:    "Unpacking",
	StepFlashing:     "Flashing",
	StepErasing:      "Erasing",
	StepDone:         "Done",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Destructive reports whether the session is inside the window where device
// writes are in flight and the process must not be killed casually.
func (s Step) Destructive() bool {
	return s >= StepDownloading && s <= StepErasing
}
