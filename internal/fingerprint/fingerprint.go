// Package fingerprint computes the deterministic identity of an artifact
// (C1): multi-algorithm hashing, magic-byte type classification, and
// Shannon entropy, including a segmented high-entropy-region scan.
package fingerprint

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/threatcore/analysis-core/internal/model"
)

// DefaultHighEntropyThreshold is the bits/byte threshold above which a
// 1 KiB chunk is reported as a high-entropy region (spec §4.1).
const DefaultHighEntropyThreshold = 7.0

const segmentSize = 1024

// Compute derives the Fingerprint of b. A 0-byte artifact is not an
// error: every hash algorithm has a well-defined digest of the empty
// string, and entropy is defined as 0 (spec §8).
func Compute(b []byte) (model.Fingerprint, error) {
	return ComputeWithThreshold(b, DefaultHighEntropyThreshold)
}

// ComputeWithThreshold is Compute with a caller-supplied high-entropy
// region threshold.
func ComputeWithThreshold(b []byte, entropyThreshold float64) (model.Fingerprint, error) {
	md5Sum := md5.Sum(b)
	sha1Sum := sha1.Sum(b)
	sha256Sum := sha256.Sum256(b)
	sha3Sum := sha3.Sum256(b)
	blake2bSum := blake2b.Sum512(b)

	ent := Entropy(b)
	regions := HighEntropyRegions(b, entropyThreshold)
	dtype := DetectType(b)

	return model.Fingerprint{
		MD5:                hex.EncodeToString(md5Sum[:]),
		SHA1:               hex.EncodeToString(sha1Sum[:]),
		SHA256:             hex.EncodeToString(sha256Sum[:]),
		SHA3256:            hex.EncodeToString(sha3Sum[:]),
		BLAKE2b:            hex.EncodeToString(blake2bSum[:]),
		Size:               int64(len(b)),
		Entropy:            ent,
		DetectedType:       dtype,
		HighEntropyRegions: regions,
	}, nil
}

// Entropy computes base-2 Shannon entropy over a 256-bin byte histogram.
// An empty slice has entropy 0.
func Entropy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var hist [256]int
	for _, c := range b {
		hist[c]++
	}
	total := float64(len(b))
	var ent float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		ent -= p * math.Log2(p)
	}
	return ent
}

// HighEntropyRegions segments b into segmentSize-byte chunks and reports
// every chunk whose entropy exceeds threshold.
func HighEntropyRegions(b []byte, threshold float64) []model.EntropyRegion {
	var regions []model.EntropyRegion
	for off := 0; off < len(b); off += segmentSize {
		end := off + segmentSize
		if end > len(b) {
			end = len(b)
		}
		chunk := b[off:end]
		e := Entropy(chunk)
		if e > threshold {
			regions = append(regions, model.EntropyRegion{
				Offset:  int64(off),
				Length:  int64(len(chunk)),
				Entropy: e,
			})
		}
	}
	return regions
}

var officeMarkers = []string{"word/", "xl/", "ppt/", "[Content_Types]"}

// DetectType classifies b by magic bytes per spec §4.1.
func DetectType(b []byte) model.DetectedType {
	switch {
	case bytes.HasPrefix(b, []byte("MZ")):
		return model.TypePE
	case bytes.HasPrefix(b, []byte("\x7fELF")):
		return model.TypeELF
	case bytes.HasPrefix(b, []byte("%PDF")):
		return model.TypePDF
	case bytes.HasPrefix(b, []byte("PK\x03\x04")):
		head := b
		if len(head) > 2048 {
			head = head[:2048]
		}
		for _, marker := range officeMarkers {
			if bytes.Contains(head, []byte(marker)) {
				return model.TypeOffice
			}
		}
		return model.TypeZIP
	case bytes.HasPrefix(b, []byte("#!")):
		return model.TypeScript
	case bytes.HasPrefix(b, []byte("<?php")), bytes.Contains(firstN(b, 256), []byte("<script")):
		return model.TypeScript
	case isPrintableRatio(b):
		return model.TypeText
	default:
		return model.TypeUnknown
	}
}

func firstN(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

// isPrintableRatio reports whether at least 85% of b's bytes are
// printable ASCII or common whitespace.
func isPrintableRatio(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	sample := b
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	printable := 0
	for _, c := range sample {
		if (c >= 0x20 && c <= 0x7e) || c == '\n' || c == '\r' || c == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) >= 0.85
}

// ExtensionOf returns the lower-cased extension (without the dot) of
// filename, or "" if there is none.
func ExtensionOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
