package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainGraph prefixes story fingerprints. The version suffix allows the
// encoding to change later.
const DomainGraph = "goalc/graph/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is a content hash of the compiled story. Two compilations of
// the same input have the same fingerprint.
func Fingerprint(s *Story) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainGraph, data), nil
}
