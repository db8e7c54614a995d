package domain

// OperationKind identifies the logical RPC an attempt belongs to.
type OperationKind int

const (
	OperationRead       OperationKind = iota // Get, dictionary fetch, list fetch...
	OperationWrite                           // Set, delete, overwrite-style writes
	OperationBatchRead                       // Multi-key reads
	OperationBatchWrite                      // Multi-key overwrites
	OperationAdmin                           // Control plane (create/list/delete cache)
	OperationSubscribe                       // Topic subscription stream
	OperationPublish                         // Topic publish
	OperationMutate                          // Increment, list push and other non-idempotent writes
)

var operationNames = map[OperationKind]string{
	OperationRead:       "read",
	OperationWrite:      "write",
	OperationBatchRead:  "batch_read",
	OperationBatchWrite: "batch_write",
	OperationAdmin:      "admin",
	OperationSubscribe:  "subscribe",
	OperationPublish:    "publish",
	OperationMutate:     "mutate",
}

func (k OperationKind) String() string {
	if name, ok := operationNames[k]; ok {
		return name
	}
	return "unknown"
}

// Idempotent reports whether repeating the operation cannot duplicate side effects.
func (k OperationKind) Idempotent() bool {
	switch k {
	case OperationPublish, OperationMutate:
		return false
	default:
		return true
	}
}
