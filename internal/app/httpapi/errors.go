package httpapi

import "errors"

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errMissingID        = errors.New("missing id path segment")
	errUnauthorized     = errors.New("missing or invalid credentials")
	errRateLimited      = errors.New("rate limit exceeded")
)
