package letterboxd

import (
	"errors"
	"fmt"
)

// ErrRemoteUnavailable indicates Letterboxd answered with a non-success
// transport status before any body interpretation was attempted.
var ErrRemoteUnavailable = errors.New("letterboxd: remote unavailable")

// ErrFilmNotFound indicates a TMDB id did not resolve to a film slug and
// internal film id.
var ErrFilmNotFound = errors.New("letterboxd: film not found")

// ErrStructureChanged indicates an expected markup or JSON shape was absent,
// meaning the site layout changed rather than the data being empty.
var ErrStructureChanged = errors.New("letterboxd: page structure changed")

// AuthRejectedError is returned when Letterboxd declines the credentials.
type AuthRejectedError struct {
	Message string
}

func (e *AuthRejectedError) Error() string {
	if e.Message == "" {
		return "letterboxd: authentication rejected"
	}
	return fmt.Sprintf("letterboxd: authentication rejected: %s", e.Message)
}

// WriteRejectedError is returned when Letterboxd declines a diary write.
type WriteRejectedError struct {
	Message string
}

func (e *WriteRejectedError) Error() string {
	if e.Message == "" {
		return "letterboxd: diary write rejected"
	}
	return fmt.Sprintf("letterboxd: diary write rejected: %s", e.Message)
}
