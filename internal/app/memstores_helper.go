package app

import "github.com/R3E-Network/service_layer/internal/app/storage/memory"

// NewMemoryStoresForTest constructs an in-memory store set. Intended for
// unit tests; production deployments configure Stores.Store from a
// Postgres DSN instead (see cmd/appserver/main.go).
func NewMemoryStoresForTest() Stores {
	return Stores{Store: memory.New()}
}
