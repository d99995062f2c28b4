// Package security checks provider endpoints before any request is sent.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// OutboundURLOptions configures provider endpoint validation.
type OutboundURLOptions struct {
	// AllowHTTP permits plain HTTP URLs. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets and localhost names.
	AllowLocalNetworks bool
}

// LocalEndpointOptions accepts a model server on this machine or the LAN,
// such as Ollama at http://localhost:11434/v1.
var LocalEndpointOptions = OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}

// ValidateOutboundURL rejects unsafe schemes and, unless allowed, local
// network targets. IP literals are checked without DNS lookups.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid endpoint URL %q", rawURL)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.Errorf("endpoint %q: http scheme is not allowed", rawURL)
		}
	default:
		return errors.Errorf("endpoint %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Errorf("endpoint %q has no host", rawURL)
	}

	if !opts.AllowLocalNetworks {
		if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
			return errors.Errorf("endpoint %q: local hostname is not allowed", rawURL)
		}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return errors.Errorf("endpoint %q: zoned IP address is not allowed", rawURL)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("endpoint %q: disallowed IP address", rawURL)
	}
	if !opts.AllowLocalNetworks {
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return errors.Errorf("endpoint %q: local network IP is not allowed", rawURL)
		}
	}
	return nil
}
