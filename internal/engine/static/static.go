// Package static implements the static engine (C6): a pure function of
// artifact bytes producing Detections from magic/extension mismatch,
// entropy, extracted strings, a PE section walk, and embedded-artifact
// sniffing. It never executes the bytes it inspects.
package static

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

// Config controls the static engine's thresholds (spec §6 "Static"
// configuration keys).
type Config struct {
	EntropyThreshold float64
	MaxStringLength  int
	MinStringLength  int
	MaxFileSize      int64
}

// DefaultConfig matches the spec §6 defaults.
func DefaultConfig() Config {
	return Config{EntropyThreshold: 7.0, MaxStringLength: 256, MinStringLength: 4, MaxFileSize: 100 << 20}
}

var suspiciousStrings = []string{
	"cmd.exe /c", "powershell -enc", "GetProcAddress", "VirtualAllocEx",
	"WriteProcessMemory", "CreateRemoteThread", "URLDownloadToFile",
	"WinExec", "ShellExecute", "RegSetValueEx", "IsDebuggerPresent",
	"NtUnmapViewOfSection",
}

var packerNames = []string{"upx", "aspack", "pecompact", "fsg", "vmprotect"}

// Engine is the static engine. It carries no mutable state: every call
// to Scan is a pure function of its input.
type Engine struct {
	cfg Config
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	if cfg.EntropyThreshold <= 0 {
		cfg.EntropyThreshold = 7.0
	}
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = 256
	}
	if cfg.MinStringLength <= 0 {
		cfg.MinStringLength = 4
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 << 20
	}
	return &Engine{cfg: cfg}
}

// Scan produces the static engine's Detection for b, given the
// artifact's declared filename (used only for its extension).
func (e *Engine) Scan(b []byte, filename string) (model.Detection, error) {
	start := time.Now()

	if int64(len(b)) > e.cfg.MaxFileSize {
		return model.Detection{}, svcerr.TooLarge(fmt.Sprintf("artifact size %d exceeds max_file_size %d", len(b), e.cfg.MaxFileSize))
	}

	detected := fingerprint.DetectType(b)
	categories := make([]string, 0, 4)
	maxSeverity := model.SeverityInfo
	confidence := 0.2

	if ext := fingerprint.ExtensionOf(filename); ext != "" {
		if mismatched, expected := magicMismatch(ext, detected); mismatched {
			categories = append(categories, "magic-mismatch")
			maxSeverity = model.MaxSeverity(maxSeverity, model.SeverityLow)
			confidence += 0.1
			_ = expected
		}
	}

	ent := fingerprint.Entropy(b)
	regions := fingerprint.HighEntropyRegions(b, e.cfg.EntropyThreshold)
	if ent > e.cfg.EntropyThreshold || len(regions) > 0 {
		categories = append(categories, "packed-or-encrypted")
		maxSeverity = model.MaxSeverity(maxSeverity, model.SeverityMedium)
		confidence += 0.2
	}

	strs := ExtractStrings(b, e.cfg.MinStringLength, e.cfg.MaxStringLength)
	hits := matchSuspiciousStrings(strs)
	if len(hits) > 0 {
		categories = append(categories, "suspicious-strings")
		maxSeverity = model.MaxSeverity(maxSeverity, model.SeverityMedium)
		confidence += 0.15
	}

	var sections []PESection
	likelyPacked := false
	if detected == model.TypePE {
		var err error
		sections, err = WalkPESections(b)
		if err == nil {
			likelyPacked = IsLikelyPacked(sections, e.cfg.EntropyThreshold)
			if likelyPacked {
				categories = append(categories, "likely-packed")
				maxSeverity = model.MaxSeverity(maxSeverity, model.SeverityHigh)
				confidence += 0.2
			}
		}
	}

	embedded := FindEmbeddedArtifacts(b)
	if len(embedded) > 0 {
		categories = append(categories, "embedded-artifact")
		maxSeverity = model.MaxSeverity(maxSeverity, model.SeverityMedium)
		confidence += 0.15
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	verdict := model.VerdictUnknown
	switch {
	case len(categories) == 0:
		verdict = model.VerdictBenign
	case maxSeverity == model.SeverityHigh || maxSeverity == model.SeverityCritical:
		verdict = model.VerdictSuspicious
	default:
		verdict = model.VerdictSuspicious
		if maxSeverity == model.SeverityInfo || maxSeverity == model.SeverityLow {
			verdict = model.VerdictBenign
		}
	}

	metadata := map[string]interface{}{
		"entropy":            ent,
		"high_entropy_count": len(regions),
		"string_count":       len(strs),
		"suspicious_strings": hits,
		"likely_packed":      likelyPacked,
		"embedded_count":     len(embedded),
	}
	if len(sections) > 0 {
		metadata["pe_sections"] = sections
	}

	return model.Detection{
		EngineName:       "static",
		EngineKind:       model.EngineStatic,
		Verdict:          verdict,
		Confidence:       confidence,
		Severity:         maxSeverity,
		Categories:       categories,
		Metadata:         metadata,
		DetectedAt:       time.Now(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

var extToType = map[string]model.DetectedType{
	"exe": model.TypePE, "dll": model.TypePE, "sys": model.TypePE,
	"elf": model.TypeELF, "so": model.TypeELF,
	"pdf": model.TypePDF,
	"zip": model.TypeZIP,
	"doc": model.TypeOffice, "docx": model.TypeOffice, "xls": model.TypeOffice, "xlsx": model.TypeOffice,
	"txt": model.TypeText,
}

// magicMismatch reports whether ext implies a DetectedType that disagrees
// with detected.
func magicMismatch(ext string, detected model.DetectedType) (bool, model.DetectedType) {
	expected, known := extToType[ext]
	if !known {
		return false, model.TypeUnknown
	}
	return expected != detected, expected
}

// ExtractStrings returns runs of printable ASCII bytes between minLen and
// maxLen (inclusive), the same contract the heuristic and scanner
// components reuse for content inspection.
func ExtractStrings(b []byte, minLen, maxLen int) []string {
	var out []string
	var run []byte
	flush := func() {
		if len(run) >= minLen {
			s := string(run)
			if len(s) > maxLen {
				s = s[:maxLen]
			}
			out = append(out, s)
		}
		run = run[:0]
	}
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e {
			run = append(run, c)
			if len(run) >= maxLen {
				flush()
			}
		} else {
			flush()
		}
	}
	flush()
	return out
}

func matchSuspiciousStrings(strs []string) []string {
	var hits []string
	seen := make(map[string]bool)
	for _, s := range strs {
		for _, sus := range suspiciousStrings {
			if strings.Contains(s, sus) && !seen[sus] {
				seen[sus] = true
				hits = append(hits, sus)
			}
		}
	}
	return hits
}

// PESection is one entry of a walked PE section table.
type PESection struct {
	Name            string
	VirtualAddress  uint32
	Size            uint32
	Characteristics uint32
	Entropy         float64
}

// WalkPESections parses the DOS/COFF/section headers of a PE image and
// returns each section's metadata plus raw-data entropy (spec §4.6).
func WalkPESections(b []byte) ([]PESection, error) {
	if len(b) < 0x40 {
		return nil, svcerr.BadInput("too small for a PE header")
	}
	lfanew := binary.LittleEndian.Uint32(b[0x3C:0x40])
	if int(lfanew)+24 > len(b) {
		return nil, svcerr.BadInput("e_lfanew out of range")
	}
	peSig := b[lfanew : lfanew+4]
	if !bytes.Equal(peSig, []byte("PE\x00\x00")) {
		return nil, svcerr.BadInput("missing PE signature")
	}

	coff := b[lfanew+4:]
	if len(coff) < 20 {
		return nil, svcerr.BadInput("truncated COFF header")
	}
	numSections := binary.LittleEndian.Uint16(coff[2:4])
	sizeOptHeader := binary.LittleEndian.Uint16(coff[16:18])

	sectionTableOff := int(lfanew) + 4 + 20 + int(sizeOptHeader)
	sections := make([]PESection, 0, numSections)
	for i := 0; i < int(numSections); i++ {
		off := sectionTableOff + i*40
		if off+40 > len(b) {
			break
		}
		entry := b[off : off+40]
		name := strings.TrimRight(string(bytes.TrimRight(entry[0:8], "\x00")), " ")
		virtualSize := binary.LittleEndian.Uint32(entry[8:12])
		virtualAddr := binary.LittleEndian.Uint32(entry[12:16])
		rawSize := binary.LittleEndian.Uint32(entry[16:20])
		rawPtr := binary.LittleEndian.Uint32(entry[20:24])
		characteristics := binary.LittleEndian.Uint32(entry[36:40])

		var ent float64
		if rawPtr > 0 && rawSize > 0 && int64(rawPtr)+int64(rawSize) <= int64(len(b)) {
			ent = fingerprint.Entropy(b[rawPtr : rawPtr+rawSize])
		}

		size := rawSize
		if size == 0 {
			size = virtualSize
		}
		sections = append(sections, PESection{
			Name:            name,
			VirtualAddress:  virtualAddr,
			Size:            size,
			Characteristics: characteristics,
			Entropy:         ent,
		})
	}
	return sections, nil
}

// IsLikelyPacked applies the spec §4.6 packer heuristics: any
// high-entropy section, a known packer section name, or fewer than 3
// sections.
func IsLikelyPacked(sections []PESection, entropyThreshold float64) bool {
	if len(sections) < 3 {
		return true
	}
	for _, s := range sections {
		if s.Entropy > entropyThreshold {
			return true
		}
		lower := strings.ToLower(s.Name)
		for _, packer := range packerNames {
			if strings.Contains(lower, packer) {
				return true
			}
		}
	}
	return false
}

// EmbeddedArtifact is a file-signature occurrence found past the header
// region of the outer artifact.
type EmbeddedArtifact struct {
	Offset     int64
	Signature  string
	Suspicious bool
}

const embeddedScanStart = 512

// FindEmbeddedArtifacts looks for MZ/PK signatures beyond offset 512,
// which spec §4.6 treats as evidence of an embedded, suspicious file.
func FindEmbeddedArtifacts(b []byte) []EmbeddedArtifact {
	var found []EmbeddedArtifact
	if len(b) <= embeddedScanStart {
		return found
	}
	search := b[embeddedScanStart:]
	for _, sig := range []string{"MZ", "PK\x03\x04"} {
		idx := 0
		for {
			pos := bytes.Index(search[idx:], []byte(sig))
			if pos < 0 {
				break
			}
			abs := int64(embeddedScanStart + idx + pos)
			found = append(found, EmbeddedArtifact{
				Offset:     abs,
				Signature:  hex.EncodeToString([]byte(sig)),
				Suspicious: true,
			})
			idx += pos + len(sig)
			if idx >= len(search) {
				break
			}
		}
	}
	return found
}
