package core

import "fmt"

// Identifiers hands out small integer handles and recycles released ones.
// Slot 0 is reserved so that a zero handle always means "none".
type Identifiers struct {
	owners []interface{}
}

func NewIdentifiers(capacity int) *Identifiers {
	if capacity < 1 {
		capacity = 1
	}
	return &Identifiers{owners: make([]interface{}, 1, capacity)}
}

func (ids *Identifiers) Acquire(owner interface{}) uint32 {
	length := uint32(len(ids.owners))
	for i := uint32(1); i < length; i++ {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ids.owners = append(ids.owners, owner)
	return uint32(len(ids.owners)) - 1
}

func (ids *Identifiers) Owner(id uint32) interface{} {
	if id == 0 || id >= uint32(len(ids.owners)) {
		return nil
	}
	return ids.owners[id]
}

func (ids *Identifiers) Release(id uint32) error {
	length := uint32(len(ids.owners))
	if id == 0 || id >= length {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, length)
	}

	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}
