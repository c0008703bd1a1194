package verify

import (
	"strconv"
	"strings"

	"rollscan/internal/domain"
)

// DefaultThreshold is the minimum match score for a record to count as valid.
const DefaultThreshold = 0.95

// Score compares a local record against one remote payload entry. Age and
// EPIC match exactly or not at all; names use the similarity ratio. The score
// is the mean over fields present on both sides, or 0 when no field is
// mutually present. Differences list every compared field whose raw values
// were unequal, independent of the threshold.
func Score(local domain.VoterRecord, remote RemotePerson) (float64, []domain.FieldDiff) {
	var (
		scores []float64
		diffs  []domain.FieldDiff
	)

	if local.VoterName != "" && remote.ApplicantFullName != "" {
		ratio := Ratio(normalizeName(local.VoterName), normalizeName(remote.ApplicantFullName))
		scores = append(scores, ratio)
		if local.VoterName != remote.ApplicantFullName {
			diffs = append(diffs, domain.FieldDiff{Field: "name", Local: local.VoterName, Remote: remote.ApplicantFullName})
		}
	}

	if local.Age > 0 && remote.Age > 0 {
		if local.Age == remote.Age {
			scores = append(scores, 1)
		} else {
			scores = append(scores, 0)
			diffs = append(diffs, domain.FieldDiff{
				Field:  "age",
				Local:  strconv.Itoa(local.Age),
				Remote: strconv.Itoa(remote.Age),
			})
		}
	}

	if local.EpicID != "" && remote.EpicNumber != "" {
		if normalizeEpicForMatch(local.EpicID) == normalizeEpicForMatch(remote.EpicNumber) {
			scores = append(scores, 1)
		} else {
			scores = append(scores, 0)
		}
		if local.EpicID != remote.EpicNumber {
			diffs = append(diffs, domain.FieldDiff{Field: "epic", Local: local.EpicID, Remote: remote.EpicNumber})
		}
	}

	if len(scores) == 0 {
		return 0, diffs
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), diffs
}

// BestMatch scores the record against every payload entry and returns the
// highest-scoring comparison.
func BestMatch(local domain.VoterRecord, persons []RemotePerson) (float64, []domain.FieldDiff) {
	best := 0.0
	var bestDiffs []domain.FieldDiff
	for i, p := range persons {
		score, diffs := Score(local, p)
		if i == 0 || score > best {
			best = score
			bestDiffs = diffs
		}
	}
	return best, bestDiffs
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// normalizeEpicForMatch strips formatting so locally regrouped EPICs compare
// equal to the remote form.
func normalizeEpicForMatch(epic string) string {
	epic = strings.ToUpper(epic)
	epic = strings.ReplaceAll(epic, "/", "")
	return strings.ReplaceAll(epic, " ", "")
}
