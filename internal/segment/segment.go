// Package segment turns one raw roll line into candidate field spans. There is
// no column layout to rely on: boundaries are carved around anchor tokens (the
// relationship marker and the sex marker) found in the obfuscated text itself.
package segment

import (
	"strconv"
	"strings"

	"rollscan/internal/domain"
	"rollscan/internal/glyph"
)

// MinTokens is the floor below which a line cannot be a voter row.
const MinTokens = 5

const (
	minAge = 18
	maxAge = 120
)

// relationship markers as they appear in the shifted alphabet. Plain-text
// documents carry the readable forms, so both are probed.
var rawRelationMarkers = map[string]domain.Relationship{
	")DWKHU":  domain.RelationFather,
	"+XVEDQG": domain.RelationHusband,
	"0RWKHU":  domain.RelationMother,
	":LIH":    domain.RelationWife,
}

var decodedRelationMarkers = map[string]domain.Relationship{
	"father":  domain.RelationFather,
	"husband": domain.RelationHusband,
	"mother":  domain.RelationMother,
	"wife":    domain.RelationWife,
}

// epicFingerprints are punctuation runs the documents use at the start of an
// EPIC token when the "WB" prefix itself is obfuscated.
var epicFingerprints = []string{":%(cid:18)", "WB(cid:18)", "WB(cidW", ".1", ".N", "DKN"}

// FieldSpans is the segmented, decoded view of one voter row, ready for
// assembly.
type FieldSpans struct {
	SerialNo        string
	HouseNo         string
	VoterNameRaw    string
	VoterName       string
	Relationship    domain.Relationship
	RelationNameRaw string
	RelationName    string
	Sex             domain.Sex
	Age             int    // 0 means absent
	EpicRaw         string // decoded, not yet normalized
}

// IsCandidate reports whether a line passes the cheap row checks: enough
// tokens and a relationship anchor. Candidates can still be rejected later
// (empty decoded name); the gap between candidates and assembled records is
// the segmentation-regression signal.
func IsCandidate(raw string) bool {
	tokens := strings.Fields(raw)
	if len(tokens) < MinTokens {
		return false
	}
	idx, _, _ := findRelationship(tokens)
	return idx >= 0
}

// Line segments one raw line. The second return is false when the line is not
// a voter row: too few tokens, no relationship anchor, or no decodable name.
// Rejected lines are for the caller to count, not to report as errors.
func Line(raw string) (FieldSpans, bool) {
	tokens := strings.Fields(raw)
	if len(tokens) < MinTokens {
		return FieldSpans{}, false
	}

	relIdx, relationship, encoded := findRelationship(tokens)
	if relIdx < 0 {
		return FieldSpans{}, false
	}

	spans := FieldSpans{
		SerialNo:     stripWrapper(tokens[0]),
		Relationship: relationship,
		Sex:          domain.SexUnknown,
	}
	if len(tokens) > 1 {
		spans.HouseNo = tokens[1]
	}

	if relIdx > 2 {
		spans.VoterNameRaw = strings.Join(tokens[2:relIdx], " ")
	} else if len(tokens) > 2 {
		spans.VoterNameRaw = tokens[2]
	}
	spans.VoterName = decodeSpan(spans.VoterNameRaw, encoded)
	if spans.VoterName == "" {
		return FieldSpans{}, false
	}

	sexIdx := -1
	if relIdx+1 < len(tokens) {
		sexIdx, spans.Sex = findSex(tokens, relIdx)
	}

	if sexIdx > relIdx+1 {
		spans.RelationNameRaw = strings.Join(tokens[relIdx+1:sexIdx], " ")
	} else if relIdx+1 < len(tokens) {
		spans.RelationNameRaw = tokens[relIdx+1]
	}
	spans.RelationName = decodeSpan(spans.RelationNameRaw, encoded)

	// Age and EPIC live somewhere after the sex marker; without one, fall
	// back to just past the relation name.
	scanFrom := sexIdx + 1
	if sexIdx < 0 {
		scanFrom = relIdx + 2
	}
	spans.Age = findAge(tokens, scanFrom)
	spans.EpicRaw = findEpic(tokens, scanFrom)

	return spans, true
}

// decodeSpan decodes an obfuscated span, or just normalizes whitespace when
// the line was already plain. Running plain text through the substitution
// table would corrupt it.
func decodeSpan(raw string, encoded bool) string {
	if encoded {
		return glyph.Decode(raw)
	}
	return strings.Join(strings.Fields(raw), " ")
}

// findRelationship locates the first token carrying a relationship marker.
// The form the marker matched in doubles as the line's encoding probe: an
// obfuscated or code-bearing match means the whole line needs decoding, while
// a readable marker means the document was extracted as plain text.
func findRelationship(tokens []string) (int, domain.Relationship, bool) {
	for i, tok := range tokens {
		for marker, rel := range rawRelationMarkers {
			if strings.Contains(tok, marker) {
				return i, rel, true
			}
		}
		for marker, rel := range decodedRelationMarkers {
			if strings.Contains(strings.ToLower(tok), marker) {
				return i, rel, false
			}
			if strings.Contains(strings.ToLower(glyph.Decode(tok)), marker) {
				return i, rel, true
			}
		}
	}
	return -1, domain.RelationUnresolved, false
}

// findSex scans past the relationship anchor for a literal M/F token or for
// the obfuscated one-symbol markers "0" (M) and ")" (F). The symbolic form
// only counts straight after a token longer than two characters, which keeps
// house numbers like "5/0" from reading as a marker. The heuristic is known to
// misfire on short names; callers wanting a stricter rule swap this function.
func findSex(tokens []string, relIdx int) (int, domain.Sex) {
	for j := relIdx + 1; j < len(tokens); j++ {
		switch tokens[j] {
		case "M":
			return j, domain.SexMale
		case "F":
			return j, domain.SexFemale
		case "0":
			if len(tokens[j-1]) > 2 {
				return j, domain.SexMale
			}
		case ")":
			if len(tokens[j-1]) > 2 {
				return j, domain.SexFemale
			}
		}
	}
	return -1, domain.SexUnknown
}

// findAge prefers a tens/ones pair of indexed codes inside one token, then a
// token that is purely numeric once wrappers are stripped. Values outside
// [18,120] are discarded, never clamped.
func findAge(tokens []string, from int) int {
	if from < 0 {
		from = 0
	}
	for _, tok := range tokens[min(from, len(tokens)):] {
		if digits := glyph.CIDDigits(tok); len(digits) >= 2 {
			age := digits[0]*10 + digits[1]
			if age >= minAge && age <= maxAge {
				return age
			}
			continue
		}
		cleaned := glyph.StripCIDs(tok)
		if cleaned == "" {
			continue
		}
		if n, err := strconv.Atoi(cleaned); err == nil && n >= minAge && n <= maxAge {
			return n
		}
	}
	return 0
}

// findEpic returns the decoded text of the first token that looks like an EPIC
// run: a literal or decoded "WB", or one of the known punctuation
// fingerprints.
func findEpic(tokens []string, from int) string {
	if from < 0 {
		from = 0
	}
	for _, tok := range tokens[min(from, len(tokens)):] {
		switch {
		case hasEpicFingerprint(tok):
			return strings.TrimSpace(glyph.Decode(tok))
		case strings.Contains(tok, "WB"):
			// Already plain; decoding would push it back through the
			// substitution table.
			return strings.TrimSpace(tok)
		case strings.Contains(glyph.Decode(tok), "WB"):
			return strings.TrimSpace(glyph.Decode(tok))
		}
	}
	return ""
}

func hasEpicFingerprint(tok string) bool {
	for _, fp := range epicFingerprints {
		if strings.Contains(tok, fp) {
			return true
		}
	}
	return false
}

// stripWrapper removes indexed-code wrapper syntax from a serial token,
// leaving plain characters and code numbers behind.
func stripWrapper(tok string) string {
	s := strings.ReplaceAll(tok, "(cidW:", "")
	s = strings.ReplaceAll(s, "(cid:", "")
	s = strings.ReplaceAll(s, ")", "")
	return strings.ReplaceAll(s, "(", "")
}
