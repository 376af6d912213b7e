package domain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is exactly "0x" followed by 40 hex characters.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress lowercases and trims an address so it can be used as an
// identity key.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ChecksumAddress returns the EIP-55 form of a hex address.
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// CanonicalAddress returns the lowercase 0x-prefixed form of a hex address
// accepted by ValidTokenAddress.
func CanonicalAddress(s string) string {
	return strings.ToLower(common.HexToAddress(strings.TrimSpace(s)).Hex())
}

// ShortAddress renders 0x1234…abcd.
func ShortAddress(s string) string {
	if len(s) < 10 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

// ValidTokenAddress accepts any hex address go-ethereum would parse,
// with or without the 0x prefix.
func ValidTokenAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}
