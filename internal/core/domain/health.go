package domain

// Health reports the reachability of the service's backing stores.
type Health struct {
	// Status is "healthy" when every store responds, otherwise
	// "degraded".
	Status string `json:"status"`

	// LexicalConnected reports the lexical index.
	LexicalConnected bool `json:"lexical_connected"`

	// VectorConnected reports the vector index.
	VectorConnected bool `json:"vector_connected"`

	// BehaviorConnected reports the behavior store.
	BehaviorConnected bool `json:"behavior_connected"`
}

// Healthy reports whether every store responded.
func (h Health) Healthy() bool {
	return h.LexicalConnected && h.VectorConnected && h.BehaviorConnected
}
