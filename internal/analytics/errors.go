package analytics

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity matches every DataIntegrityError through errors.Is.
var ErrDataIntegrity = errors.New("data integrity violation")

// DataIntegrityError aborts an analyzer run: a category cycle, a dangling
// reference, a duplicate id or a negative monetary value reached the engine.
type DataIntegrityError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

func integrityError(entity string, id int64, format string, args ...any) error {
	return &DataIntegrityError{Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}
