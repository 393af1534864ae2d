package version

// VRef is the handle tree nodes and leaves carry instead of a bare
// *Version. In source implementations that recycle version storage
// (VERS_VERSIONED mode), a VRef also carries a sequence number to detect
// reuse of freed version memory. Go's garbage collector never reuses a
// live *Version's address while a VRef can still observe it, so the
// sequence field here is purely a contract placeholder: it is always
// populated from the Version's own (constant) generation and compared for
// equality, preserving the two required operations without needing manual
// generation bumps.
type VRef struct {
	v   *Version
	gen uint64
}

// RefOf returns the VRef for v, taking no reference of its own: a VRef is
// a non-owning observer, the owning reference is held by whatever field
// (node slot, leaf header, tree root) stores the VRef.
func RefOf(v *Version) VRef {
	if v == nil {
		return VRef{}
	}
	return VRef{v: v, gen: v.generation()}
}

func (v *Version) generation() uint64 {
	// Constant for the object's lifetime; see VRef's doc comment.
	return 1
}

// IsVersion reports whether r refers to v specifically.
func (r VRef) IsVersion(v *Version) bool {
	return r.v == v && r.gen == v.generation()
}

// Equal reports whether r and o refer to the same version.
func (r VRef) Equal(o VRef) bool {
	return r.v == o.v && r.gen == o.gen
}

// Version returns the underlying version pointer. Callers must hold a
// reference to the owning structure (node, leaf, tree) to keep it valid.
func (r VRef) Version() *Version {
	return r.v
}

// IsZero reports whether r was never assigned a version.
func (r VRef) IsZero() bool {
	return r.v == nil
}
