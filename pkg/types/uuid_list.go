package types

import "github.com/google/uuid"

// UUIDList is a JSON-serialized list of ids stored in a single column.
type UUIDList []uuid.UUID

// Contains reports whether the list holds the given id.
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, candidate := range l {
		if candidate == id {
			return true
		}
	}
	return false
}
