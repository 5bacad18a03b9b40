package metro

import (
	"errors"
	"fmt"
)

var (
	// ErrStationNotFound matches any StationNotFoundError via errors.Is.
	ErrStationNotFound = errors.New("station not found")

	// ErrNoRoute is returned when both stations exist but are not connected.
	ErrNoRoute = errors.New("no route between stations")
)

// StationNotFoundError names the query endpoint that does not exist.
type StationNotFoundError struct {
	Name string
}

func (e *StationNotFoundError) Error() string {
	return fmt.Sprintf("station not found: %q", e.Name)
}

func (e *StationNotFoundError) Is(target error) bool {
	return target == ErrStationNotFound
}
