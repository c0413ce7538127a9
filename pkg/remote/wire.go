package remote

// wireEvent is the JSON frame pushed to WebSocket subscribers when a key
// changes. A nil NewValue means the key was removed; an empty Key means
// the backend changed in a way it could not attribute to single keys.
type wireEvent struct {
	Key      string  `json:"key"`
	OldValue *string `json:"oldValue"`
	NewValue *string `json:"newValue"`
}
