package rate

import "errors"

// ErrStoreUnavailable is returned when the backing counter store cannot be reached.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")
