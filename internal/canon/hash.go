package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the encoding
// to change without colliding with older fingerprints.
const (
	DomainModel  = "daeblt/model/v1"
	DomainResult = "daeblt/result/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash marshals v canonically and hashes it under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}
