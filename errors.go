package tcansim

import "errors"

var (
	ErrInvalidPin       = errors.New("unknown pin")
	ErrPinNotSettable   = errors.New("pin is output only and cannot be set externally")
	ErrVoltageRange     = errors.New("voltage outside pin operating range")
	ErrInvalidConfig    = errors.New("configuration value outside documented range")
	ErrInvalidTiming    = errors.New("timing parameter outside documented range")
	ErrSnapshotMismatch = errors.New("snapshot does not match simulator shape")
	ErrInvalidEventType = errors.New("unknown event type")
	ErrNilCallback      = errors.New("callback must not be nil")
	ErrUnknownCallback  = errors.New("no callback registered with this id")
	ErrScenarioFile     = errors.New("malformed scenario file")
)
