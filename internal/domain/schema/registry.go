package schema

// ProviderEntry is one allowlisted enclave measurement. Revocation is
// terminal for an entry: re-registering the same measurement appends a fresh
// entry instead of resurrecting a revoked one, so the audit history of every
// revocation survives.
type ProviderEntry struct {
	MrEnclave          Digest
	EnclaveSigner      PublicKey
	MinPlatformVersion uint16
	Active             bool
	RegisteredAtSlot   uint64
	RevokedAtSlot      uint64
}

// ProviderRegistry maps enclave measurements to their allowlist entries.
// It is a plain value consumed by verification; it performs no I/O and holds
// no locks. Ownership and serialization live with the account store.
type ProviderRegistry struct {
	entries map[Digest][]ProviderEntry
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{entries: make(map[Digest][]ProviderEntry)}
}

// ActiveEntry returns the active entry for mrEnclave, if any. At most one
// entry per measurement is active at a time.
func (r *ProviderRegistry) ActiveEntry(mrEnclave Digest) (ProviderEntry, bool) {
	for _, e := range r.entries[mrEnclave] {
		if e.Active {
			return e, true
		}
	}
	return ProviderEntry{}, false
}

// HasActive reports whether mrEnclave currently has an active entry.
func (r *ProviderRegistry) HasActive(mrEnclave Digest) bool {
	_, ok := r.ActiveEntry(mrEnclave)
	return ok
}

// Register appends a new active entry. It reports false when an active entry
// for the measurement already exists.
func (r *ProviderRegistry) Register(e ProviderEntry) bool {
	if r.HasActive(e.MrEnclave) {
		return false
	}
	e.Active = true
	e.RevokedAtSlot = 0
	r.entries[e.MrEnclave] = append(r.entries[e.MrEnclave], e)
	return true
}

// Revoke deactivates the active entry for mrEnclave at the given slot.
// It reports false when no active entry exists.
func (r *ProviderRegistry) Revoke(mrEnclave Digest, slot uint64) bool {
	es := r.entries[mrEnclave]
	for i := range es {
		if es[i].Active {
			es[i].Active = false
			es[i].RevokedAtSlot = slot
			return true
		}
	}
	return false
}

// Entries returns the full entry history for a measurement, revoked included.
func (r *ProviderRegistry) Entries(mrEnclave Digest) []ProviderEntry {
	es := r.entries[mrEnclave]
	out := make([]ProviderEntry, len(es))
	copy(out, es)
	return out
}

// ActiveCount returns the number of currently active entries.
func (r *ProviderRegistry) ActiveCount() int {
	n := 0
	for _, es := range r.entries {
		for _, e := range es {
			if e.Active {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy safe for lock-free read-side verification.
func (r *ProviderRegistry) Clone() *ProviderRegistry {
	c := NewProviderRegistry()
	for k, es := range r.entries {
		cp := make([]ProviderEntry, len(es))
		copy(cp, es)
		c.entries[k] = cp
	}
	return c
}
