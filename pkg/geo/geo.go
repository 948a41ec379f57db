// Package geo resolves visitor IP addresses to ISO country codes.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver looks up the country for an IP address. Implementations report
// ok=false when the address cannot be resolved; callers apply their own
// fallback policy.
type Resolver interface {
	Country(ip net.IP) (code string, ok bool)
}

// MaxMind resolves countries from a local MaxMind GeoIP2/GeoLite2 database.
type MaxMind struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the GeoIP2 country database at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	const op = "geo.OpenMaxMind"

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open geoip database: %w", op, err)
	}

	return &MaxMind{reader: reader}, nil
}

func (m *MaxMind) Country(ip net.IP) (string, bool) {
	record, err := m.reader.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

// Close releases the underlying database reader.
func (m *MaxMind) Close() error {
	return m.reader.Close()
}

// Static always resolves to a fixed country code. It stands in for a real
// geo database in development and test environments.
type Static struct {
	Code string
}

func (s Static) Country(_ net.IP) (string, bool) {
	if s.Code == "" {
		return "", false
	}
	return s.Code, true
}

// Unroutable reports whether the address is loopback, private or otherwise
// not globally routable. Such addresses never resolve in a geo database.
func Unroutable(ip net.IP) bool {
	return ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
}
