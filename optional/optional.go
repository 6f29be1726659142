// Package optional holds values which may or may not have been set.
package optional

// Optional is a value of type T which may be missing. The zero value is an
// empty Optional.
type Optional[T any] struct {
	value T
	set   bool
}

// Of returns an Optional which holds v.
func Of[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Set stores v and marks the Optional as holding a value.
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.set = true
}

// Get returns the stored value. It returns the zero value of T when nothing
// has been set.
func (o Optional[T]) Get() T {
	return o.value
}

// HasValue reports whether a value has been set.
func (o Optional[T]) HasValue() bool {
	return o.set
}

// Reset empties the Optional.
func (o *Optional[T]) Reset() {
	var zero T
	o.value = zero
	o.set = false
}
