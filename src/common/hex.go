package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeToString returns the uppercase hex representation of b with a 0X
// prefix.
func EncodeToString(b []byte) string {
	return fmt.Sprintf("0X%X", b)
}

// DecodeFromString converts a hex string, with or without the 0X prefix, to a
// byte slice.
func DecodeFromString(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0X") || strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
