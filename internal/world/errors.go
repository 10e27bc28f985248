package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no entity of the addressed kind has the given id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID means an entity of the same kind already uses the id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidDescriptor means a descriptor carries non-finite values or a
	// non-positive size.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

// Kind names an entity namespace.
type Kind string

const (
	KindWall   Kind = "wall"
	KindPlayer Kind = "player"
	KindBomb   Kind = "bomb"
)

// EntityError reports a failed operation on one entity. Use errors.Is with
// the sentinels above to classify it.
type EntityError struct {
	Op   string
	Kind Kind
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("world: %s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("world: %s %s %q: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func notFound(op string, kind Kind, id string) error {
	return &EntityError{Op: op, Kind: kind, ID: id, Err: ErrNotFound}
}

func duplicate(op string, kind Kind, id string) error {
	return &EntityError{Op: op, Kind: kind, ID: id, Err: ErrDuplicateID}
}

func invalid(op string, kind Kind, id string, reason string) error {
	return &EntityError{Op: op, Kind: kind, ID: id, Err: fmt.Errorf("%w: %s", ErrInvalidDescriptor, reason)}
}

// invariantBreach aborts on a registered handle the engine no longer knows.
// That can only happen through a bug in this package, never through caller input.
func invariantBreach(op string, id string, err error) {
	panic(fmt.Sprintf("world: %s %q: engine rejected a registered handle: %v", op, id, err))
}
