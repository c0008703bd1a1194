// Package report rolls extraction results and stored records up into the
// aggregate views used for quality auditing.
package report

import (
	"sort"

	"rollscan/internal/domain"
	"rollscan/internal/extract"
)

// DocumentDelta compares how many rows looked like voter rows against how
// many survived assembly for one document. A non-zero delta flags pages the
// segmenter is losing.
type DocumentDelta struct {
	Path          string `json:"path"`
	CandidateRows int    `json:"candidate_rows"`
	Assembled     int    `json:"assembled"`
	Skipped       int    `json:"skipped"`
	Delta         int    `json:"delta"`
}

func Deltas(results []extract.Result) []DocumentDelta {
	deltas := make([]DocumentDelta, 0, len(results))
	for _, r := range results {
		deltas = append(deltas, DocumentDelta{
			Path:          r.Path,
			CandidateRows: r.CandidateRows,
			Assembled:     len(r.Records),
			Skipped:       r.SkippedRows,
			Delta:         r.CandidateRows - len(r.Records),
		})
	}
	return deltas
}

// FieldCompleteness reports how many records carry a usable value for one
// field.
type FieldCompleteness struct {
	Field   string  `json:"field"`
	Present int     `json:"present"`
	Percent float64 `json:"percent"`
}

func Completeness(records []domain.VoterRecord) []FieldCompleteness {
	fields := []struct {
		name    string
		present func(domain.VoterRecord) bool
	}{
		{"voter_name", func(r domain.VoterRecord) bool { return r.VoterName != "" }},
		{"relationship", func(r domain.VoterRecord) bool { return r.Relationship != domain.RelationUnresolved && r.Relationship != "" }},
		{"relation_name", func(r domain.VoterRecord) bool { return r.RelationName != "" }},
		{"sex", func(r domain.VoterRecord) bool { return r.Sex == domain.SexMale || r.Sex == domain.SexFemale }},
		{"age", func(r domain.VoterRecord) bool { return r.Age > 0 }},
		{"epic_id", func(r domain.VoterRecord) bool { return r.EpicID != "" }},
	}

	out := make([]FieldCompleteness, 0, len(fields))
	for _, f := range fields {
		count := 0
		for _, r := range records {
			if f.present(r) {
				count++
			}
		}
		fc := FieldCompleteness{Field: f.name, Present: count}
		if len(records) > 0 {
			fc.Percent = 100 * float64(count) / float64(len(records))
		}
		out = append(out, fc)
	}
	return out
}

// SexBreakdown counts records per sex marker, including Unknown.
func SexBreakdown(records []domain.VoterRecord) map[domain.Sex]int {
	counts := make(map[domain.Sex]int)
	for _, r := range records {
		sex := r.Sex
		if sex != domain.SexMale && sex != domain.SexFemale {
			sex = domain.SexUnknown
		}
		counts[sex]++
	}
	return counts
}

// AgeBucket is one histogram bin. Bounds are inclusive.
type AgeBucket struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

// AgeHistogram buckets ages in decades starting at the minimum legal voting
// age. Records without an age are skipped.
func AgeHistogram(records []domain.VoterRecord) []AgeBucket {
	const lowest, width = 18, 10

	counts := make(map[int]int)
	for _, r := range records {
		if r.Age < lowest {
			continue
		}
		counts[(r.Age-lowest)/width]++
	}

	buckets := make([]AgeBucket, 0, len(counts))
	for bin, count := range counts {
		buckets = append(buckets, AgeBucket{
			Low:   lowest + bin*width,
			High:  lowest + (bin+1)*width - 1,
			Count: count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Low < buckets[j].Low })
	return buckets
}

// DuplicateKey flags rows that appear more than once in a batch. Grouping is
// by (ac, part, serial, voter_name), not the EPIC-bearing record key: two rows
// with the same serial and name are duplicates even when their EPICs differ.
type DuplicateKey struct {
	ACNumber   int    `json:"ac_number"`
	PartNumber int    `json:"part_number"`
	SerialNo   string `json:"serial_no"`
	VoterName  string `json:"voter_name"`
	Count      int    `json:"count"`
}

func DuplicateKeys(records []domain.VoterRecord) []DuplicateKey {
	type rowKey struct {
		ac     int
		part   int
		serial string
		name   string
	}
	counts := make(map[rowKey]int)
	for _, r := range records {
		counts[rowKey{r.ACNumber, r.PartNumber, r.SerialNo, r.VoterName}]++
	}
	dups := make([]DuplicateKey, 0)
	for key, n := range counts {
		if n > 1 {
			dups = append(dups, DuplicateKey{
				ACNumber:   key.ac,
				PartNumber: key.part,
				SerialNo:   key.serial,
				VoterName:  key.name,
				Count:      n,
			})
		}
	}
	sort.Slice(dups, func(i, j int) bool {
		a, b := dups[i], dups[j]
		if a.PartNumber != b.PartNumber {
			return a.PartNumber < b.PartNumber
		}
		if a.SerialNo != b.SerialNo {
			return a.SerialNo < b.SerialNo
		}
		return a.VoterName < b.VoterName
	})
	return dups
}

// PartReconciliation compares the local record count of a part against the
// remote roll's count.
type PartReconciliation struct {
	ACNumber   int `json:"ac_number"`
	PartNumber int `json:"part_number"`
	Local      int `json:"local"`
	Remote     int `json:"remote"`
	Delta      int `json:"delta"`
}

func Reconcile(acNumber, partNumber, local, remote int) PartReconciliation {
	return PartReconciliation{
		ACNumber:   acNumber,
		PartNumber: partNumber,
		Local:      local,
		Remote:     remote,
		Delta:      local - remote,
	}
}

// Summary is the full batch rollup for one extraction run.
type Summary struct {
	Documents     []DocumentDelta     `json:"documents"`
	TotalRecords  int                 `json:"total_records"`
	Completeness  []FieldCompleteness `json:"completeness"`
	SexBreakdown  map[domain.Sex]int  `json:"sex_breakdown"`
	AgeHistogram  []AgeBucket         `json:"age_histogram"`
	DuplicateKeys []DuplicateKey      `json:"duplicate_keys,omitempty"`
}

func Build(results []extract.Result) Summary {
	var records []domain.VoterRecord
	for _, r := range results {
		records = append(records, r.Records...)
	}
	return Summary{
		Documents:     Deltas(results),
		TotalRecords:  len(records),
		Completeness:  Completeness(records),
		SexBreakdown:  SexBreakdown(records),
		AgeHistogram:  AgeHistogram(records),
		DuplicateKeys: DuplicateKeys(records),
	}
}
