package domain

import "time"

// SnapshotSchemaVersion gates loading of persisted client snapshots. A
// stored snapshot with a different schema version is discarded and
// refetched from the server, never best-effort parsed.
const SnapshotSchemaVersion = 2

// ClientCartSnapshot is the locally persisted mirror of a cart: the items
// plus a monotonically increasing version used to detect divergence from
// the server cart after reconnection.
type ClientCartSnapshot struct {
	SchemaVersion int        `json:"schema_version"`
	CartID        string     `json:"cart_id,omitempty"`
	Items         []CartItem `json:"items"`
	Version       int64      `json:"version"`
	LastSyncedAt  time.Time  `json:"last_synced_at"`
}

// Clone returns a deep copy; reducers mutate copies, never shared state.
func (s *ClientCartSnapshot) Clone() *ClientCartSnapshot {
	out := *s
	out.Items = make([]CartItem, len(s.Items))
	copy(out.Items, s.Items)
	for i := range out.Items {
		if len(s.Items[i].Attributes) > 0 {
			out.Items[i].Attributes = make([]Attribute, len(s.Items[i].Attributes))
			copy(out.Items[i].Attributes, s.Items[i].Attributes)
		}
	}
	return &out
}
