package storage

import (
	"fmt"
	"io"
	"strings"
)

// NewStore builds the backend named by kind. An empty kind selects the build's
// default backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if strings.TrimSpace(sqlitePath) == "" {
			return nil, fmt.Errorf("sqlite store requires a database path")
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseStore releases backends that hold resources. Stores without a Close
// method are left alone.
func CloseStore(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
