package kiosk

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/facepunch/pkg/attendance"
	"github.com/MrCodeEU/facepunch/pkg/enrollment"
)

// ErrorCode classifies an operation failure for display.
type ErrorCode string

const (
	ErrCodeNotVerified      ErrorCode = "NOT_VERIFIED"
	ErrCodeCooldown         ErrorCode = "COOLDOWN"
	ErrCodeInvalidKind      ErrorCode = "INVALID_KIND"
	ErrCodeNoSamples        ErrorCode = "NO_SAMPLES"
	ErrCodeEnrollmentActive ErrorCode = "ENROLLMENT_ACTIVE"
	ErrCodeNoEnrollment     ErrorCode = "NO_ENROLLMENT"
	ErrCodeTrainingBusy     ErrorCode = "TRAINING_BUSY"
	ErrCodeEmptyName        ErrorCode = "EMPTY_NAME"
	ErrCodeStorage          ErrorCode = "STORAGE_ERROR"
	ErrCodeUnknown          ErrorCode = "UNKNOWN"
)

// User-friendly error messages
var errorMessages = map[ErrorCode]string{
	ErrCodeNotVerified:      "Please look at the camera and complete the challenge first",
	ErrCodeCooldown:         "You punched recently. Please wait before punching again",
	ErrCodeInvalidKind:      "Unknown punch type. Use IN or OUT",
	ErrCodeNoSamples:        "No face samples were captured. Please try again",
	ErrCodeEnrollmentActive: "A registration is already in progress",
	ErrCodeNoEnrollment:     "No registration is in progress",
	ErrCodeTrainingBusy:     "The model is still training. Please wait",
	ErrCodeEmptyName:        "Please enter a name",
	ErrCodeStorage:          "Could not save the record. Please contact an administrator",
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Operation failed"
}

// Code classifies err.
func Code(err error) ErrorCode {
	var cooldown *attendance.CooldownError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cooldown):
		return ErrCodeCooldown
	case errors.Is(err, attendance.ErrNotVerified):
		return ErrCodeNotVerified
	case errors.Is(err, attendance.ErrInvalidKind):
		return ErrCodeInvalidKind
	case errors.Is(err, enrollment.ErrNoSamples):
		return ErrCodeNoSamples
	case errors.Is(err, enrollment.ErrEnrollmentActive):
		return ErrCodeEnrollmentActive
	case errors.Is(err, enrollment.ErrNoEnrollment):
		return ErrCodeNoEnrollment
	case errors.Is(err, enrollment.ErrTrainingBusy):
		return ErrCodeTrainingBusy
	case errors.Is(err, enrollment.ErrEmptyName):
		return ErrCodeEmptyName
	case errors.Is(err, attendance.ErrStorage):
		return ErrCodeStorage
	}
	return ErrCodeUnknown
}

// Message renders err for the person at the kiosk. Cooldowns include the
// remaining seconds.
func Message(err error) string {
	var cooldown *attendance.CooldownError
	if errors.As(err, &cooldown) {
		return fmt.Sprintf("Please wait %d seconds before punching again.", cooldown.Seconds())
	}
	return GetErrorMessage(Code(err))
}
