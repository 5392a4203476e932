package endpointurl

import "testing"

func TestParseStandardURLWithHostPort(t *testing.T) {
	ep, err := Parse("udpin://0.0.0.0:14550")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ep.Scheme != "udpin" {
		t.Fatalf("unexpected scheme %q", ep.Scheme)
	}
	if ep.Options["host"] != "0.0.0.0" || ep.Options["port"] != "14550" {
		t.Fatalf("unexpected options %+v", ep.Options)
	}
}

func TestParseStandardURLWithQueryOptions(t *testing.T) {
	ep, err := Parse("serial:///dev/ttyUSB0?baud=115200")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ep.Scheme != "serial" {
		t.Fatalf("unexpected scheme %q", ep.Scheme)
	}
	if ep.Options["path"] != "/dev/ttyUSB0" {
		t.Fatalf("unexpected path option %q", ep.Options["path"])
	}
	if ep.Options["baud"] != "115200" {
		t.Fatalf("unexpected baud option %q", ep.Options["baud"])
	}
}

func TestParseLegacyColonForm(t *testing.T) {
	ep, err := Parse("serial:/dev/ttyUSB0:57600")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ep.Scheme != "serial" {
		t.Fatalf("unexpected scheme %q", ep.Scheme)
	}
	if ep.Options["host"] != "/dev/ttyUSB0" || ep.Options["port"] != "57600" {
		t.Fatalf("unexpected options %+v", ep.Options)
	}
}

func TestParseMissingSchemeFails(t *testing.T) {
	if _, err := Parse("://nope"); err == nil {
		t.Fatal("expected error for missing scheme")
	}
}
