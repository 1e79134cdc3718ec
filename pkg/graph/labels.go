package graph

const (
	// CatchAllLabel is the secondary tag attached to every synced entity so
	// relationship lookups can match any entity by identifier alone, without
	// knowing its exact label.
	CatchAllLabel = "SyncedEntity"

	// OwnerLabel is the one privileged label that is never tagged with the
	// catch-all. Owner/identity nodes keep their own lookup pattern.
	OwnerLabel = "User"

	// idProperty is the stable external identifier, unique across the whole
	// graph regardless of label. It is the join key for relationships.
	idProperty = "source_id"
)

// sanitizeLabel restricts a label or relationship type to an identifier-safe
// character set before it is spliced into query text. This is the sole trust
// boundary for label/type injection; every dynamically-typed write statement
// must pass its names through here.
func sanitizeLabel(label string) string {
	result := ""
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result += string(c)
		}
	}
	if result == "" {
		return "Entity"
	}
	return result
}
