package state

// ErrCode is the coarse, UI-actionable error space of the session. Every
// phase failure is translated into exactly one of these; the fine-grained
// cause is logged only.
type ErrCode int

const (
	ErrNone ErrCode = iota
	ErrUnknown
	ErrUnrecognizedDevice
	ErrLostConnection
	ErrDownloadFailed
	ErrChecksumMismatch
	ErrUnpackFailed
	ErrFlashFailed
	ErrEraseFailed
	ErrRequirementsNotMet
)

var errCodeNames = map[ErrCode]string{
	ErrNone:               "None",
	ErrUnknown:            "Unknown",
	ErrUnrecognizedDevice: "UnrecognizedDevice",
	ErrLostConnection:     "LostConnection",
	ErrDownloadFailed:     "DownloadFailed",
	ErrChecksumMismatch:   "ChecksumMismatch",
	ErrUnpackFailed:       "UnpackFailed",
	ErrFlashFailed:        "FlashFailed",
	ErrEraseFailed:        "EraseFailed",
	ErrRequirementsNotMet: "RequirementsNotMet",
}

func (e ErrCode) String() string {
	if name, ok := errCodeNames[e]; ok {
		return name
	}
	return "Unknown"
}
