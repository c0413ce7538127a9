// Package storage binds reactive values to key-value backends.
//
// A binding keeps a reactive value and a stored raw string synchronized in
// both directions: mutations of the value are serialized and written to
// the backend, and external changes to the key, whether from another
// binding in this process or another context reported by the backend, flow
// back into the value without re-triggering a write.
//
//	theme := storage.Bind("theme", "light")
//	theme.Set("dark")              // backend now holds "dark"
//	current := theme.Get()         // "dark", subscribes the current listener
//
// Serializers are inferred from the value type (booleans, numbers,
// strings, time.Time, maps, set-like maps, JSON for the rest) and can be
// overridden per binding. Writing a nil value removes the key; removal
// resets the value to its default.
//
// Backends implement the three-method Storage contract. This package
// ships in-memory, JSON-file, database/sql, Redis and S3 backends; the
// remote package adds a WebSocket hub. Backends that can observe
// mutations from other contexts additionally implement EventSource. Writes
// made through a binding are announced on a process-local Bus so that two
// bindings on the same key and backend observe each other even when the
// backend has no native events.
package storage
