package validate

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Built-in format names.
const (
	FormatEmail    = "email"
	FormatURI      = "uri"
	FormatHostname = "hostname"
	FormatUUID     = "uuid"
	FormatIP       = "ip"
	FormatIPv4     = "ipv4"
	FormatIPv6     = "ipv6"
)

// FormatFunc reports whether s has the shape a format describes.
type FormatFunc func(s string) bool

// FormatSet is an immutable set of named string formats. Extend it with
// With; the receiver is never modified.
type FormatSet struct {
	funcs map[string]FormatFunc
}

var defaultFormats = &FormatSet{funcs: map[string]FormatFunc{
	FormatEmail:    IsEmail,
	FormatURI:      IsURI,
	FormatHostname: IsHostname,
	FormatUUID:     IsUUID,
	FormatIP:       func(s string) bool { return net.ParseIP(s) != nil },
	FormatIPv4:     func(s string) bool { ip := net.ParseIP(s); return ip != nil && ip.To4() != nil },
	FormatIPv6:     func(s string) bool { ip := net.ParseIP(s); return ip != nil && ip.To4() == nil },
}}

// DefaultFormats returns the built-in formats.
func DefaultFormats() *FormatSet {
	return defaultFormats
}

// With returns a copy of s that also knows the named format.
func (s *FormatSet) With(name string, fn FormatFunc) *FormatSet {
	funcs := make(map[string]FormatFunc, len(s.funcs)+1)
	for k, v := range s.funcs {
		funcs[k] = v
	}
	funcs[name] = fn
	return &FormatSet{funcs: funcs}
}

// Lookup returns the checker for name.
func (s *FormatSet) Lookup(name string) (FormatFunc, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// Names returns the known format names, sorted.
func (s *FormatSet) Names() []string {
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmail checks a lightweight RFC 5322 shape: a non-empty local part, a
// single "@", and a domain containing at least one dot with no empty label.
func IsEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at != strings.LastIndexByte(s, '@') {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if strings.ContainsAny(local, " \t\r\n") || !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.ContainsAny(label, " \t\r\n") {
			return false
		}
	}
	return true
}

// IsURI reports whether s is an absolute URI.
func IsURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

// IsHostname checks RFC 1123 host names.
func IsHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !isAlnum && r != '-' {
				return false
			}
		}
	}
	return true
}

// IsUUID reports whether s is a canonical (hyphenated) UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
