package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsafeURL is returned for webhook or API endpoints that fail validation.
var ErrUnsafeURL = errors.New("unsafe outbound URL")

// OutboundURLOptions configures validation of webhook and model endpoints.
type OutboundURLOptions struct {
	// AllowHTTP permits plain HTTP URLs. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback/private/link-local IP targets and localhost hostnames.
	AllowLocalNetworks bool
}

// ValidateOutboundURL checks that rawURL is safe to send notes or prompts to.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	_, err := ParseOutboundURL(rawURL, opts)
	return err
}

// ParseOutboundURL validates rawURL and returns it parsed.
// IP literals are checked without DNS lookups.
func ParseOutboundURL(rawURL string, opts OutboundURLOptions) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.Wrapf(ErrUnsafeURL, "invalid URL: %v", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return nil, errors.Wrap(ErrUnsafeURL, "http scheme is not allowed")
		}
	default:
		return nil, errors.Wrapf(ErrUnsafeURL, "unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, errors.Wrap(ErrUnsafeURL, "URL host is required")
	}
	if parsed.User != nil {
		return nil, errors.Wrap(ErrUnsafeURL, "credentials in URL are not allowed")
	}

	if !opts.AllowLocalNetworks && isLocalHostname(host) {
		return nil, errors.Wrapf(ErrUnsafeURL, "local hostname %q is not allowed", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if err := checkAddr(addr, opts); err != nil {
			return nil, errors.Wrapf(ErrUnsafeURL, "%s: %q", err.Error(), host)
		}
	}

	return parsed, nil
}

func isLocalHostname(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

func checkAddr(addr netip.Addr, opts OutboundURLOptions) error {
	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return errors.New("zoned IP address is not allowed")
	}
	addr = addr.Unmap()

	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.New("disallowed IP address")
	}
	if !opts.AllowLocalNetworks &&
		(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
		return errors.New("local network IP is not allowed")
	}
	return nil
}
