package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Domain prefixes for content digests. The version suffix allows the
// algorithm to change without colliding with old digests.
const (
	DomainInput   = "zkfuzz/input/v1"
	DomainPlan    = "zkfuzz/plan/v1"
	DomainCommits = "zkfuzz/commits/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InputDigest identifies an input document independent of its formatting.
// The raw JSON is brought into RFC 8785 form first, so whitespace and key
// order do not change the digest.
func InputDigest(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("InputDigest: canonicalize: %w", err)
	}
	return hashWithDomain(DomainInput, canonical), nil
}

// PlanDigest hashes the canonical form of a serialized plan manifest.
func PlanDigest(manifest []byte) (string, error) {
	canonical, err := jcs.Transform(manifest)
	if err != nil {
		return "", fmt.Errorf("PlanDigest: canonicalize: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// CommitsDigest hashes a commit stream. Equal streams have equal digests.
func CommitsDigest(commits []IRValue) (string, error) {
	canonical, err := MarshalCanonical(IRArray(commits))
	if err != nil {
		return "", fmt.Errorf("CommitsDigest: %w", err)
	}
	return hashWithDomain(DomainCommits, canonical), nil
}
