package whr

import "errors"

// Error taxonomy. Invalid arguments are rejected at the API boundary;
// ErrUnstableRating and ErrGammaOverflow mean the model itself has failed
// and are never retried internally.
var (
	// ErrSelfPlay is returned when a game names the same player on both sides.
	ErrSelfPlay = errors.New("whr: black and white are the same player")

	// ErrInvalidWinner is returned for a winner outside {B, W}.
	ErrInvalidWinner = errors.New("whr: winner must be B or W")

	// ErrBadRecord is returned by LoadGames for a malformed game record.
	ErrBadRecord = errors.New("whr: malformed game record")

	// ErrDayStateUnset is returned when a game is queried before it has been
	// attached to both players' timelines. Usage-order bug in the caller.
	ErrDayStateUnset = errors.New("whr: game day states are not attached")

	// ErrGammaOverflow is returned when the adjusted opponent gamma is zero
	// or beyond the representable range, i.e. the Elo gap is so extreme the
	// model has already failed. Not silently clamped.
	ErrGammaOverflow = errors.New("whr: adjusted opponent gamma out of range")

	// ErrUnstableRating is returned when a Newton step would push a rating
	// past the +/-650 Elo sanity bound. The timeline keeps its last valid
	// state; the usual cure is a smaller W2 or fewer iterations.
	ErrUnstableRating = errors.New("whr: newton step produced an unstable rating")
)
