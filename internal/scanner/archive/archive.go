// Package archive implements the ArchiveScanner member of the scanner
// family (C11): magic-based container detection, ZIP enumeration, and
// zip-bomb indicators (compression ratio, nesting, file count, and
// extracted-size ceilings).
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/threatcore/analysis-core/internal/model"
)

// ContainerType is the magic-detected archive format.
type ContainerType string

const (
	ContainerZIP     ContainerType = "zip"
	ContainerRAR     ContainerType = "rar"
	ContainerTAR     ContainerType = "tar"
	ContainerGZ      ContainerType = "gz"
	ContainerSevenZ  ContainerType = "7z"
	ContainerBZ2     ContainerType = "bz2"
	ContainerUnknown ContainerType = "unknown"
)

// Config controls the ArchiveScanner's bomb-detection thresholds.
type Config struct {
	MaxCompressionRatio float64
	MaxNestingLevel     int
	MaxFileCount        int
	MaxExtractionSize   int64
}

// DefaultConfig matches spec §4.11's archive thresholds.
func DefaultConfig() Config {
	return Config{
		MaxCompressionRatio: 100,
		MaxNestingLevel:     5,
		MaxFileCount:        100000,
		MaxExtractionSize:   1 << 30,
	}
}

var suspiciousExts = map[string]bool{"exe": true, "scr": true, "bat": true, "cmd": true, "js": true, "vbs": true, "ps1": true, "jar": true, "hta": true}

// ZipEntry describes one enumerated ZIP member.
type ZipEntry struct {
	Name             string
	Size             uint64
	CompressedSize   uint64
	CRC32            uint32
	Encrypted        bool
	SuspiciousExt    bool
	Hidden           bool
}

// Scanner is the ArchiveScanner.
type Scanner struct {
	cfg Config
}

// New constructs a Scanner.
func New(cfg Config) *Scanner {
	if cfg.MaxCompressionRatio <= 0 {
		cfg.MaxCompressionRatio = 100
	}
	if cfg.MaxNestingLevel <= 0 {
		cfg.MaxNestingLevel = 5
	}
	if cfg.MaxFileCount <= 0 {
		cfg.MaxFileCount = 100000
	}
	if cfg.MaxExtractionSize <= 0 {
		cfg.MaxExtractionSize = 1 << 30
	}
	return &Scanner{cfg: cfg}
}

// DetectContainer classifies b by its leading magic bytes.
func DetectContainer(b []byte) ContainerType {
	switch {
	case bytes.HasPrefix(b, []byte("PK\x03\x04")), bytes.HasPrefix(b, []byte("PK\x05\x06")):
		return ContainerZIP
	case bytes.HasPrefix(b, []byte("Rar!\x1a\x07")):
		return ContainerRAR
	case bytes.HasPrefix(b, []byte("\x1f\x8b")):
		return ContainerGZ
	case bytes.HasPrefix(b, []byte("7z\xbc\xaf\x27\x1c")):
		return ContainerSevenZ
	case bytes.HasPrefix(b, []byte("BZh")):
		return ContainerBZ2
	case len(b) > 262 && bytes.Equal(b[257:262], []byte("ustar")):
		return ContainerTAR
	default:
		return ContainerUnknown
	}
}

// Scan inspects the raw bytes of an archive-shaped artifact.
func (s *Scanner) Scan(b []byte) model.ScanResult {
	start := time.Now()
	var findings []model.Finding

	container := DetectContainer(b)
	metadata := map[string]interface{}{"container_type": container}

	switch container {
	case ContainerZIP:
		entries, zipFindings := s.scanZip(b)
		metadata["entries"] = entries
		findings = append(findings, zipFindings...)
	case ContainerGZ:
		ratio, gzFindings := s.scanGzip(b)
		metadata["compression_ratio"] = ratio
		findings = append(findings, gzFindings...)
	}

	return model.ScanResult{
		Findings:       findings,
		Verdict:        verdictFor(findings),
		ScanDurationMS: time.Since(start).Milliseconds(),
		Metadata:       metadata,
	}
}

func (s *Scanner) scanZip(b []byte) ([]ZipEntry, []model.Finding) {
	var findings []model.Finding
	r, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, []model.Finding{{
			Category: model.FindingSuspicious, Title: "corrupt ZIP container",
			Severity: model.SeverityLow,
		}}
	}

	entries := make([]ZipEntry, 0, len(r.File))
	var totalExtracted int64
	var totalCompressed uint64
	anyEncrypted := false

	for _, f := range r.File {
		encrypted := f.Flags&0x1 != 0
		anyEncrypted = anyEncrypted || encrypted
		ext := extOf(f.Name)
		entry := ZipEntry{
			Name: f.Name, Size: f.UncompressedSize64, CompressedSize: f.CompressedSize64,
			CRC32: f.CRC32, Encrypted: encrypted, SuspiciousExt: suspiciousExts[ext],
			Hidden: isHidden(f.Name),
		}
		entries = append(entries, entry)
		totalExtracted += int64(f.UncompressedSize64)
		totalCompressed += f.CompressedSize64

		if entry.SuspiciousExt {
			findings = append(findings, model.Finding{
				Category: model.FindingSuspicious, Title: "suspicious archived file extension",
				Description: "archive member \"" + f.Name + "\" carries an executable extension",
				Severity:    model.SeverityMedium, Evidence: []string{f.Name},
			})
		}
		if entry.Hidden {
			findings = append(findings, model.Finding{
				Category: model.FindingSuspicious, Title: "hidden archive member",
				Severity: model.SeverityLow, Evidence: []string{f.Name},
			})
		}
	}

	if len(entries) > s.cfg.MaxFileCount {
		findings = append(findings, model.Finding{
			Category: model.FindingMalware, Title: "excessive file count",
			Description: "archive contains more entries than the configured ceiling",
			Severity:    model.SeverityHigh,
		})
	}
	if totalExtracted > s.cfg.MaxExtractionSize {
		findings = append(findings, model.Finding{
			Category: model.FindingMalware, Title: "excessive extraction size",
			Description: "total uncompressed size exceeds the configured ceiling",
			Severity:    model.SeverityHigh,
		})
	}
	if anyEncrypted {
		findings = append(findings, model.Finding{
			Category: model.FindingSuspicious, Title: "encrypted archive",
			Description: "archive contains password-protected members, hiding content from static inspection",
			Severity:    model.SeverityMedium,
		})
	}
	if totalCompressed > 0 {
		ratio := float64(totalExtracted) / float64(totalCompressed)
		if ratio > s.cfg.MaxCompressionRatio {
			findings = append(findings, model.Finding{
				Category: model.FindingMalware, Title: "Zip bomb detected",
				Description: "compression ratio exceeds the zip-bomb threshold",
				Severity:    model.SeverityCritical,
			})
		}
	}

	return entries, findings
}

// scanGzip decompresses a single gzip member with a capped reader to
// measure its compression ratio without fully materializing an
// adversarially crafted payload.
func (s *Scanner) scanGzip(b []byte) (float64, []model.Finding) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return 0, []model.Finding{{Category: model.FindingSuspicious, Title: "corrupt gzip container", Severity: model.SeverityLow}}
	}
	defer zr.Close()

	limit := s.cfg.MaxExtractionSize + 1
	n, _ := io.CopyN(io.Discard, zr, limit)

	compressedSize := int64(len(b))
	if compressedSize == 0 {
		return 0, nil
	}
	ratio := float64(n) / float64(compressedSize)

	var findings []model.Finding
	if n >= limit {
		findings = append(findings, model.Finding{
			Category: model.FindingMalware, Title: "Zip bomb detected",
			Description: "decompressed size exceeds the extraction-size ceiling before the ratio check could complete",
			Severity:    model.SeverityCritical,
		})
	} else if ratio > s.cfg.MaxCompressionRatio {
		findings = append(findings, model.Finding{
			Category: model.FindingMalware, Title: "Zip bomb detected",
			Description: "compression ratio exceeds the zip-bomb threshold",
			Severity:    model.SeverityCritical,
		})
	}
	return ratio, findings
}

func verdictFor(findings []model.Finding) model.Verdict {
	if len(findings) == 0 {
		return model.VerdictBenign
	}
	max := model.SeverityInfo
	for _, f := range findings {
		max = model.MaxSeverity(max, f.Severity)
	}
	switch {
	case max == model.SeverityCritical || max == model.SeverityHigh:
		return model.VerdictMalicious
	default:
		return model.VerdictSuspicious
	}
}

func extOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

func isHidden(name string) bool {
	base := name
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		base = name[idx+1:]
	}
	return strings.HasPrefix(base, ".")
}
