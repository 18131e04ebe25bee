package services

import (
	"errors"
	"fmt"
)

// Allocation failure kinds. Handlers map these onto HTTP statuses; the
// engine itself never touches the response writer.
const (
	KindEntityNotFound          = "ENTITY_NOT_FOUND"
	KindInsufficientStock       = "INSUFFICIENT_STOCK"
	KindSerialRangeConflict     = "SERIAL_RANGE_CONFLICT"
	KindInvalidRange            = "INVALID_RANGE"
	KindMissingAccountingNumber = "MISSING_ACCOUNTING_NUMBER"
	KindLogNotFound             = "LOG_NOT_FOUND"
)

// AllocationError carries enough context for the caller to report which
// entity and serial range the failure concerns.
type AllocationError struct {
	Kind        string
	EntityType  string
	EntityID    string
	FirstSerial int
	LastSerial  int
	Message     string
}

func (e *AllocationError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (%s %s)", e.Kind, e.Message, e.EntityType, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AllocationErrorKind extracts the failure kind, or "" for non-allocation
// errors such as database failures.
func AllocationErrorKind(err error) string {
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Branch scoping failures shared by the HTTP services
var (
	errNoBranchSelected   = errors.New("no branch selected")
	errNoBranchAssignment = errors.New("operator has no branch assignment")
	errBranchScope        = errors.New("branch outside operator scope")
)

func newAllocationError(kind, entityType, entityID, message string) *AllocationError {
	return &AllocationError{
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
	}
}
