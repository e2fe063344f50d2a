package identitykey

import "testing"

func TestResolve_FullKeyPassesThrough(t *testing.T) {
	key, err := Resolve("org:acme:service:ci-bot", ResolveOptions{DefaultOrg: "other", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key.Org != "acme" || key.Type != TypeService || key.Handle != "ci-bot" {
		t.Errorf("Resolve() = %+v, want org:acme:service:ci-bot", key)
	}
}

func TestResolve_Email(t *testing.T) {
	key, err := Resolve("Alice.Smith@eng.acme.io", ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key.Handle != "alice_smith" {
		t.Errorf("Resolve() handle = %q, want alice_smith", key.Handle)
	}
	if key.Org != "acme" {
		t.Errorf("Resolve() org = %q, want acme", key.Org)
	}
}

func TestResolve_ProviderPrefix(t *testing.T) {
	key, err := Resolve("slack:U0123456", ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key.Handle != "u0123456" {
		t.Errorf("Resolve() handle = %q, want u0123456", key.Handle)
	}
}

func TestResolve_DoublyPrefixed(t *testing.T) {
	key, err := Resolve("provider1:provider2:handle", ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key.Handle != "handle" {
		t.Errorf("Resolve() handle = %q, want handle", key.Handle)
	}
}

func TestResolve_MinimumHandleLengthGetsPadded(t *testing.T) {
	key, err := Resolve("x", ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(key.Handle) < 2 {
		t.Errorf("Resolve() handle = %q, want length >= 2", key.Handle)
	}
	if !handleRE.MatchString(key.Handle) {
		t.Errorf("Resolve() handle = %q does not satisfy handle grammar", key.Handle)
	}
}

func TestResolve_MaximumHandleLengthGetsTruncated(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	key, err := Resolve(long, ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(key.Handle) != 64 {
		t.Errorf("Resolve() handle length = %d, want 64", len(key.Handle))
	}
}

func TestResolve_LeadingNonAlnumGetsPrefixed(t *testing.T) {
	key, err := Resolve("_weird-handle", ResolveOptions{DefaultOrg: "acme", DefaultType: TypeUser})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !handleRE.MatchString(key.Handle) {
		t.Errorf("Resolve() handle = %q does not satisfy handle grammar", key.Handle)
	}
}

func TestResolve_DefaultTypeAppliesWhenUnset(t *testing.T) {
	key, err := Resolve("raw-handle", ResolveOptions{DefaultOrg: "acme"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key.Type != TypeUser {
		t.Errorf("Resolve() type = %q, want user", key.Type)
	}
}
