package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTargetSelected is a contract violation: steering was requested without a target.
var ErrNoTargetSelected = errors.New("no target selected")

// TelemetryUnavailableError means a telemetry read failed or returned unusable data.
// The control loop treats it as fatal.
type TelemetryUnavailableError struct {
	Op  string
	Err error
}

func (e *TelemetryUnavailableError) Error() string {
	return fmt.Sprintf("telemetry unavailable (%s): %v", e.Op, e.Err)
}

func (e *TelemetryUnavailableError) Unwrap() error { return e.Err }

// TelemetryTimeoutError means a waiting phase never saw its threshold crossed.
type TelemetryTimeoutError struct {
	Phase  Phase
	Waited time.Duration
}

func (e *TelemetryTimeoutError) Error() string {
	return fmt.Sprintf("timed out in %s after %s", e.Phase, e.Waited)
}

// ActuationError means a command could not be delivered to the vehicle.
type ActuationError struct {
	Op  string
	Err error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuation failed (%s): %v", e.Op, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }
