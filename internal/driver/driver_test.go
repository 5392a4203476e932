package driver

import "testing"

func TestNewUUIDIsStablePerName(t *testing.T) {
	a := NewUUID("udp-in")
	b := NewUUID("udp-in")
	if a != b {
		t.Fatalf("expected deterministic uuid for the same name, got %s and %s", a, b)
	}

	c := NewUUID("udp-out")
	if a == c {
		t.Fatalf("expected different names to produce different uuids")
	}
}

func TestRegisterAndNewRoundTrip(t *testing.T) {
	const scheme = "drivertest"
	Register(func(name string, options map[string]string) (Driver, error) {
		return nil, nil
	}, scheme)

	if _, err := New(scheme, "x", nil); err != nil {
		t.Fatalf("expected registered scheme to resolve, got %v", err)
	}

	if _, err := New("no-such-scheme", "x", nil); err == nil {
		t.Fatal("expected error for an unregistered scheme")
	}
}

func TestSchemesIncludesRegistered(t *testing.T) {
	Register(func(name string, options map[string]string) (Driver, error) {
		return nil, nil
	}, "schemelisttest")

	found := false
	for _, s := range Schemes() {
		if s == "schemelisttest" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected Schemes to include a just-registered scheme")
	}
}
