package service

const (
	// DefaultListLimit is the standard default page size used across services.
	DefaultListLimit = 25
	// MaxListLimit is the standard maximum page size used across services. A
	// request asking for more is rejected rather than clamped.
	MaxListLimit = 200
)
