package schema

import "testing"

func testEntry(mr byte) ProviderEntry {
	var e ProviderEntry
	e.MrEnclave[0] = mr
	e.EnclaveSigner[0] = mr
	e.MinPlatformVersion = 3
	e.RegisteredAtSlot = 100
	return e
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewProviderRegistry()
	e := testEntry(1)
	if !r.Register(e) {
		t.Fatalf("register failed")
	}
	got, ok := r.ActiveEntry(e.MrEnclave)
	if !ok {
		t.Fatalf("no active entry after register")
	}
	if !got.Active || got.MinPlatformVersion != 3 {
		t.Fatalf("unexpected entry %+v", got)
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("active count = %d", r.ActiveCount())
	}
}

func TestRegistryRejectsDuplicateActive(t *testing.T) {
	r := NewProviderRegistry()
	e := testEntry(1)
	if !r.Register(e) {
		t.Fatalf("first register failed")
	}
	if r.Register(e) {
		t.Fatalf("duplicate active register succeeded")
	}
}

func TestRegistryRevokeIsTerminalForEntry(t *testing.T) {
	r := NewProviderRegistry()
	e := testEntry(1)
	r.Register(e)

	if !r.Revoke(e.MrEnclave, 500) {
		t.Fatalf("revoke failed")
	}
	if r.HasActive(e.MrEnclave) {
		t.Fatalf("entry still active after revoke")
	}
	if r.Revoke(e.MrEnclave, 501) {
		t.Fatalf("second revoke succeeded with no active entry")
	}

	// Re-registration appends a new entry; the revoked one stays in history.
	e.RegisteredAtSlot = 600
	if !r.Register(e) {
		t.Fatalf("re-register after revoke failed")
	}
	history := r.Entries(e.MrEnclave)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Active || history[0].RevokedAtSlot != 500 {
		t.Fatalf("revoked entry lost its record: %+v", history[0])
	}
	if !history[1].Active || history[1].RegisteredAtSlot != 600 {
		t.Fatalf("fresh entry wrong: %+v", history[1])
	}
}

func TestRegistryRevokeUnknown(t *testing.T) {
	r := NewProviderRegistry()
	var mr Digest
	mr[0] = 9
	if r.Revoke(mr, 100) {
		t.Fatalf("revoke of unknown measurement succeeded")
	}
}

func TestRegistryCloneIsDeep(t *testing.T) {
	r := NewProviderRegistry()
	e := testEntry(1)
	r.Register(e)

	c := r.Clone()
	if !r.Revoke(e.MrEnclave, 500) {
		t.Fatalf("revoke failed")
	}
	if !c.HasActive(e.MrEnclave) {
		t.Fatalf("clone observed mutation of the original")
	}
}
