// Package rollmeta derives part-level identifiers for a document from its
// filename, its directory ancestry, and, as a fallback, the document's own
// header lines. Path-based values win over in-text headers.
package rollmeta

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"rollscan/internal/domain"
	"rollscan/internal/glyph"
)

// headerScanLines bounds how deep into a document header patterns are probed.
const headerScanLines = 20

var (
	acFilePattern   = regexp.MustCompile(`AC(\d+)`)
	partFilePattern = regexp.MustCompile(`PART(\d+)`)

	acHeaderPattern      = regexp.MustCompile(`(?i)Assembly\s+Constituency\D*?(\d+).*?[:-]\s*([A-Z][A-Z\s]*)`)
	partHeaderPattern    = regexp.MustCompile(`(?i)Part\s+No\.?\s*[:-]?\s*(\d+)`)
	sectionHeaderPattern = regexp.MustCompile(`(?i)Section\s*[:-]\s*([A-Z0-9][A-Z0-9\s]*)`)
)

// FromPath builds PartMetadata from a document path. The filename convention
// carries the numbers ("AC146PART001.pdf"), the directory ancestry the names
// ("AC_146_SOMENAME", "PS_12_STATION NAME").
func FromPath(path string) domain.PartMetadata {
	var meta domain.PartMetadata

	base := filepath.Base(path)
	if m := acFilePattern.FindStringSubmatch(base); m != nil {
		meta.ACNumber, _ = strconv.Atoi(m[1])
	}
	if m := partFilePattern.FindStringSubmatch(base); m != nil {
		meta.PartNumber, _ = strconv.Atoi(m[1])
	}

	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		switch {
		case strings.HasPrefix(seg, "AC_"):
			parts := strings.Split(seg, "_")
			if len(parts) > 2 {
				meta.ACName = strings.Join(parts[2:], " ")
			}
			if meta.ACNumber == 0 && len(parts) > 1 {
				meta.ACNumber, _ = strconv.Atoi(parts[1])
			}
		case strings.HasPrefix(seg, "PS_"):
			parts := strings.Split(seg, "_")
			if len(parts) > 1 {
				meta.PSNumber = parts[1]
			}
			if len(parts) > 2 {
				meta.PSName = strings.Join(parts[2:], " ")
			}
		}
	}

	return meta
}

// FillFromHeader scans the leading lines of a document for header patterns and
// fills only the fields path derivation left empty. Each line is probed raw
// and decoded: plain documents carry readable headers that decoding would
// corrupt, obfuscated ones only match after decoding.
func FillFromHeader(meta *domain.PartMetadata, lines []string) {
	limit := min(headerScanLines, len(lines))
	for _, raw := range lines[:limit] {
		for _, line := range []string{raw, glyph.Decode(raw)} {
			if meta.ACNumber == 0 || meta.ACName == "" {
				if m := acHeaderPattern.FindStringSubmatch(line); m != nil {
					if meta.ACNumber == 0 {
						meta.ACNumber, _ = strconv.Atoi(m[1])
					}
					if meta.ACName == "" {
						meta.ACName = strings.TrimSpace(m[2])
					}
				}
			}
			if meta.PartNumber == 0 {
				if m := partHeaderPattern.FindStringSubmatch(line); m != nil {
					meta.PartNumber, _ = strconv.Atoi(m[1])
				}
			}
			if meta.SectionName == "" {
				if m := sectionHeaderPattern.FindStringSubmatch(line); m != nil {
					meta.SectionName = strings.TrimSpace(m[1])
				}
			}
		}
	}
}
