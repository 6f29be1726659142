package queues

import (
	"vkframe/optional"
)

// FamilyIndices holds the indexes of the Vulkan queue families a device needs
// for rendering into a window.
type FamilyIndices struct {

	// Graphics is the index of the queue family which supports graphics
	// commands.
	Graphics optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the
	// drawing surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Present.HasValue()
}

// Shared reports whether graphics and present use the same family. Images
// handed between the two queues need concurrent sharing when they don't.
func (f *FamilyIndices) Shared() bool {
	return f.IsComplete() && f.Graphics.Get() == f.Present.Get()
}

// Unique returns the distinct family indexes which have been set, graphics
// first. One device queue is created per returned index.
func (f *FamilyIndices) Unique() []uint32 {
	var out []uint32
	if f.Graphics.HasValue() {
		out = append(out, f.Graphics.Get())
	}
	if f.Present.HasValue() && !f.Shared() {
		out = append(out, f.Present.Get())
	}
	return out
}
