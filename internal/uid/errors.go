package uid

import "errors"

// Registry errors. A lookup miss is not an error: GetValue and GetToken
// report it through their ok result.
var (
	// ErrInvalidToken is returned when a token is empty.
	ErrInvalidToken = errors.New("uid: invalid token")

	// ErrNotFound is returned by Delete when the token has no binding.
	ErrNotFound = errors.New("uid: not found")

	// ErrCapacityExceeded is returned when the category's counter has moved
	// past the largest id the registry may hand out.
	ErrCapacityExceeded = errors.New("uid: id capacity exceeded")

	// ErrClaimPending is returned when another caller's claim on a token
	// was not bound within the claim timeout.
	ErrClaimPending = errors.New("uid: token claim pending")

	// ErrCorrupt is returned when a stored binding cannot be decoded.
	ErrCorrupt = errors.New("uid: corrupt binding")
)
