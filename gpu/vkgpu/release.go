package vkgpu

// releaser collects destroy calls of created objects and runs them in
// reverse order. Objects created later may depend on those created earlier,
// never the other way around.
type releaser struct {
	fns []func()
}

// add registers fn to run on release.
func (r *releaser) add(fn func()) {
	r.fns = append(r.fns, fn)
}

// release runs every registered function, newest first, and forgets them.
func (r *releaser) release() {
	for i := len(r.fns) - 1; i >= 0; i-- {
		r.fns[i]()
	}
	r.fns = nil
}

// len returns the number of pending destroy calls.
func (r *releaser) len() int {
	return len(r.fns)
}
