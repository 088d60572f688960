package service

import "fmt"

// Rule identifies which business rule a request violated.
type Rule string

const (
	RuleUpdateInUse    Rule = "UPDATE_IN_USE_DEVICE"
	RuleDeleteInUse    Rule = "DELETE_IN_USE_DEVICE"
	RuleOptimisticLock Rule = "OPTIMISTIC_LOCK_FAILURE"
)

// NotFoundError is returned when the requested device does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Device not found with id: %d", e.ID)
}

// DuplicateError is returned by Create when the name and brand pair is
// already taken, compared ignoring case.
type DuplicateError struct {
	Name  string
	Brand string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Device with name '%s' and brand '%s' already exists", e.Name, e.Brand)
}

// RuleViolationError is returned when a request conflicts with the current
// state of a device.
type RuleViolationError struct {
	Rule     Rule
	DeviceID int64
	Message  string
}

func (e *RuleViolationError) Error() string {
	return e.Message
}

func updateInUse(id int64) *RuleViolationError {
	return &RuleViolationError{
		Rule:     RuleUpdateInUse,
		DeviceID: id,
		Message:  "Cannot update name or brand of device that is currently in use",
	}
}

func deleteInUse(id int64) *RuleViolationError {
	return &RuleViolationError{
		Rule:     RuleDeleteInUse,
		DeviceID: id,
		Message:  "Cannot delete device that is currently in use",
	}
}

func optimisticLock(id int64) *RuleViolationError {
	return &RuleViolationError{
		Rule:     RuleOptimisticLock,
		DeviceID: id,
		Message:  "Device was modified by another user. Please refresh and try again.",
	}
}
