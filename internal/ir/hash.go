package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScop    = "polydep/scop/v1"
	DomainOptions = "polydep/options/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScopHash computes the content-addressed identity of a scop description.
// Two specs with the same statements, accesses, schedule and parameter
// values hash identically regardless of map iteration order.
func ScopHash(spec *ScopSpec) (string, error) {
	canonical, err := MarshalCanonical(spec.Canonical())
	if err != nil {
		return "", fmt.Errorf("ScopHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScop, canonical), nil
}

// OptionsHash computes the identity of a canonical analysis options object.
// The analyzer version is folded in so that results from another version
// never match.
func OptionsHash(options map[string]any) (string, error) {
	obj := map[string]any{
		"options":          options,
		"analyzer_version": AnalyzerVersion,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OptionsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOptions, canonical), nil
}
