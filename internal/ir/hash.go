package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainValue     = "bassline/value/v1"
	DomainStructure = "bassline/structure/v1"
	DomainSnapshot  = "bassline/snapshot/v1"
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

// ValueHash computes the content hash of a value.
// Equal values (per Equal) always hash identically.
func ValueHash(v IRValue) (string, error) {
	if v == nil {
		v = IRNull{}
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// StructureHash computes a content-independent hash of a network: it covers
// contact existence, ownership and properties, wire endpoints, and group
// membership and boundary sets, but not contact content. Two basslines with
// the same StructureHash are StructurallyEqual.
func StructureHash(b Bassline) (string, error) {
	canonical, err := MarshalCanonical(b.shapeIR())
	if err != nil {
		return "", fmt.Errorf("StructureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStructure, canonical), nil
}

// SnapshotHash computes the hash of a full snapshot including content.
// Used by the store to deduplicate persisted snapshots.
func SnapshotHash(b Bassline) (string, error) {
	canonical, err := MarshalCanonical(b.ToIR())
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueHash(v IRValue) string {
	h, err := ValueHash(v)
	if err != nil {
		panic(err)
	}
	return h
}
