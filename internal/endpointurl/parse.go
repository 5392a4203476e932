// Package endpointurl parses the endpoint URL grammar accepted on the
// command line: scheme://host:port[?option=value&...], with a legacy
// scheme:host:port colon form also accepted for compatibility with
// scripts written against the original tool.
package endpointurl

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is a parsed endpoint URL: its scheme, a name (always the
// raw URL string), and the flattened option set used to construct a
// driver.Factory's options map.
type Endpoint struct {
	Scheme  string
	Name    string
	Options map[string]string
}

// Parse parses raw into an Endpoint. It accepts standard URL syntax
// (udpin://0.0.0.0:14550) and a legacy colon-separated form
// (serial:/dev/ttyUSB0:57600) used by some existing automation.
func Parse(raw string) (Endpoint, error) {
	if strings.Contains(raw, "://") {
		return parseStandard(raw)
	}
	return parseLegacy(raw)
}

func parseStandard(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpointurl: %w", err)
	}
	if u.Scheme == "" {
		return Endpoint{}, fmt.Errorf("endpointurl: missing scheme in %q", raw)
	}

	options := make(map[string]string)
	if u.Hostname() != "" {
		options["host"] = u.Hostname()
	}
	if u.Port() != "" {
		options["port"] = u.Port()
	}
	if u.Path != "" && u.Path != "/" {
		options["path"] = u.Path
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			options[k] = v[0]
		}
	}

	return Endpoint{Scheme: u.Scheme, Name: raw, Options: options}, nil
}

// parseLegacy handles "<scheme>:<host-or-path>:<port>", a shorthand
// some deployment scripts used before URL syntax was adopted.
func parseLegacy(raw string) (Endpoint, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return Endpoint{}, fmt.Errorf("endpointurl: cannot parse %q", raw)
	}

	scheme := parts[0]
	options := make(map[string]string)

	switch len(parts) {
	case 2:
		options["path"] = parts[1]
	case 3:
		options["host"] = parts[1]
		options["port"] = parts[2]
		options["path"] = parts[1]
	}

	return Endpoint{Scheme: scheme, Name: raw, Options: options}, nil
}
