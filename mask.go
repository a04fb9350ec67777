package parcel

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MaskType names a builtin header masking rule.
type MaskType string

const (
	MaskRedact      MaskType = "redact"      // anything -> ***
	MaskCredential  MaskType = "credential"  // Bearer eyJhbGciOi... -> Bearer ***
	MaskIP          MaskType = "ip"          // 192.168.1.100, 10.0.0.7 -> 192.168.xxx.xxx, 10.0.xxx.xxx
	MaskEmail       MaskType = "email"       // alice@example.com -> a***@example.com
	MaskUUID        MaskType = "uuid"        // 550e8400-e29b-41d4-a716-446655440000 -> 550e8400-****-****-****-************
	MaskFingerprint MaskType = "fingerprint" // session=abc -> blake2b:5c1f... (requires WithFingerprintKey)
)

// redacted replaces values that are masked entirely.
const redacted = "***"

// validMaskTypes contains all valid mask types for option validation.
var validMaskTypes = map[MaskType]bool{
	MaskRedact:      true,
	MaskCredential:  true,
	MaskIP:          true,
	MaskEmail:       true,
	MaskUUID:        true,
	MaskFingerprint: true,
}

// IsValidMaskType returns true if the type is a known mask type.
func IsValidMaskType(mt MaskType) bool {
	return validMaskTypes[mt]
}

// Masker rewrites a header value before it is encoded.
type Masker interface {
	// Mask applies masking to the value.
	Mask(value string) string
}

// MaskerFunc adapts a function to the Masker interface.
type MaskerFunc func(value string) string

// Mask calls f(value).
func (f MaskerFunc) Mask(value string) string {
	return f(value)
}

type redactMasker struct{}

// RedactMasker returns a masker that replaces the whole value.
func RedactMasker() Masker {
	return redactMasker{}
}

func (redactMasker) Mask(string) string {
	return redacted
}

// credentialMasker masks Authorization-style values, keeping the scheme.
type credentialMasker struct{}

// CredentialMasker returns a masker for credentials.
// "Basic dXNlcjpwYXNz" becomes "Basic ***"; a value with no scheme becomes "***".
func CredentialMasker() Masker {
	return credentialMasker{}
}

func (credentialMasker) Mask(value string) string {
	scheme, _, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || scheme == "" {
		return redacted
	}
	return scheme + " " + redacted
}

// emailMasker masks email format: alice@example.com -> a***@example.com
type emailMasker struct{}

// EmailMasker returns a masker for email addresses, as found in From.
// Preserves first character of local part and full domain.
func EmailMasker() Masker {
	return emailMasker{}
}

func (emailMasker) Mask(value string) string {
	atIdx := strings.LastIndex(value, "@")
	if atIdx < 1 {
		// No @ or @ at start, mask everything
		return strings.Repeat("*", len(value))
	}
	local := []rune(value[:atIdx])
	return string(local[0]) + "***" + value[atIdx:]
}

// ipMasker masks IP addresses and comma-separated address lists.
// IPv4: 192.168.1.100 -> 192.168.xxx.xxx
// IPv6: 2001:0db8:85a3:0000:0000:8a2e:0370:7334 -> 2001:0db8:85a3:0000:xxxx:xxxx:xxxx:xxxx
type ipMasker struct{}

// IPMasker returns a masker for X-Forwarded-For style values.
// IPv4 keeps the first two octets. IPv6 keeps the first four groups.
func IPMasker() Masker {
	return ipMasker{}
}

func (ipMasker) Mask(value string) string {
	parts := strings.Split(value, ",")
	for i, p := range parts {
		lead := p[:len(p)-len(strings.TrimLeft(p, " "))]
		parts[i] = lead + maskAddress(strings.TrimSpace(p))
	}
	return strings.Join(parts, ",")
}

// maskAddress masks a single IP address.
func maskAddress(value string) string {
	if octets := strings.Split(value, "."); len(octets) == 4 {
		return octets[0] + "." + octets[1] + ".xxx.xxx"
	}
	if strings.Contains(value, ":") {
		groups := strings.Split(expandIPv6(value), ":")
		if len(groups) == 8 {
			return strings.Join(groups[:4], ":") + ":xxxx:xxxx:xxxx:xxxx"
		}
	}
	return strings.Repeat("*", len(value))
}

// expandIPv6 expands :: notation to full 8-group form.
func expandIPv6(value string) string {
	left, right, ok := strings.Cut(value, "::")
	if !ok {
		return value
	}
	if strings.Contains(right, "::") {
		return value // Multiple ::, invalid
	}

	var lg, rg []string
	if left != "" {
		lg = strings.Split(left, ":")
	}
	if right != "" {
		rg = strings.Split(right, ":")
	}

	missing := 8 - len(lg) - len(rg)
	if missing < 0 {
		return value // Too many groups, invalid
	}

	all := append([]string{}, lg...)
	for i := 0; i < missing; i++ {
		all = append(all, "0000")
	}
	all = append(all, rg...)
	return strings.Join(all, ":")
}

// uuidMasker masks UUIDs: 550e8400-e29b-41d4-a716-446655440000 -> 550e8400-****-****-****-************
type uuidMasker struct{}

// UUIDMasker returns a masker for request and correlation IDs.
// Preserves first segment, masks the rest.
func UUIDMasker() Masker {
	return uuidMasker{}
}

func (uuidMasker) Mask(value string) string {
	parts := strings.Split(value, "-")
	if len(parts) != 5 {
		// Not a valid UUID format, mask entirely
		return strings.Repeat("*", len(value))
	}
	return parts[0] + "-****-****-****-************"
}

// fingerprintMasker replaces a value with a keyed BLAKE2b-256 digest, so
// equal values stay correlatable without being readable.
type fingerprintMasker struct {
	key []byte
}

// FingerprintMasker returns a masker producing "blake2b:<hex>" digests.
// The key must be 1 to 64 bytes.
func FingerprintMasker(key []byte) (Masker, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("%w: fingerprint key must be 1 to %d bytes", ErrInvalidMask, blake2b.Size)
	}
	return fingerprintMasker{key: append([]byte(nil), key...)}, nil
}

func (m fingerprintMasker) Mask(value string) string {
	h, err := blake2b.New256(m.key)
	if err != nil {
		return redacted
	}
	h.Write([]byte(value))
	return "blake2b:" + hex.EncodeToString(h.Sum(nil))
}

// builtinMasker returns the masker for mt. Fingerprints need a key.
func builtinMasker(mt MaskType, fingerprintKey []byte) (Masker, error) {
	switch mt {
	case MaskRedact:
		return RedactMasker(), nil
	case MaskCredential:
		return CredentialMasker(), nil
	case MaskIP:
		return IPMasker(), nil
	case MaskEmail:
		return EmailMasker(), nil
	case MaskUUID:
		return UUIDMasker(), nil
	case MaskFingerprint:
		return FingerprintMasker(fingerprintKey)
	}
	return nil, fmt.Errorf("%w %q", ErrInvalidMask, mt)
}
