// Package assemble combines segmented field spans with document metadata into
// immutable voter records.
package assemble

import (
	"strings"

	"rollscan/internal/domain"
	"rollscan/internal/segment"
)

// NormalizeEpic reduces a decoded EPIC run to the canonical grouped form.
// Slashes, spaces, and a leading "WB" are stripped; a remainder of at least 11
// characters regroups as WB/AA/BBB/CCCCCC..., anything shorter is kept verbatim
// behind the prefix.
func NormalizeEpic(raw string) string {
	if raw == "" {
		return ""
	}

	epic := strings.ToUpper(raw)
	epic = strings.ReplaceAll(epic, " ", "")
	epic = strings.ReplaceAll(epic, "/", "")
	epic = strings.TrimPrefix(epic, "WB")

	if len(epic) >= 11 {
		return "WB/" + epic[:2] + "/" + epic[2:5] + "/" + epic[5:]
	}
	return "WB/" + epic
}

// Record builds the final VoterRecord for one segmented row. section is the
// carried-forward section label in effect on the row's page; filename and page
// give the record its provenance.
func Record(spans segment.FieldSpans, meta domain.PartMetadata, section, filename string, page int) domain.VoterRecord {
	sex := spans.Sex
	if sex != domain.SexMale && sex != domain.SexFemale {
		sex = domain.SexUnknown
	}

	return domain.VoterRecord{
		PartMetadata: meta,

		SerialNo:        spans.SerialNo,
		HouseNo:         spans.HouseNo,
		VoterName:       spans.VoterName,
		VoterNameRaw:    spans.VoterNameRaw,
		Relationship:    spans.Relationship,
		RelationName:    spans.RelationName,
		RelationNameRaw: spans.RelationNameRaw,
		Sex:             sex,
		Age:             spans.Age,
		EpicID:          NormalizeEpic(spans.EpicRaw),
		SectionInfo:     section,

		PDFFilename: filename,
		PageNumber:  page,
	}
}
