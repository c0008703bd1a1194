package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Relationship is the closed set of relation markers printed on a roll line.
// Unresolved means no marker was found; it is distinct from an empty name so
// downstream code cannot confuse "not found" with a blank but valid value.
type Relationship string

const (
	RelationFather     Relationship = "Father"
	RelationHusband    Relationship = "Husband"
	RelationMother     Relationship = "Mother"
	RelationWife       Relationship = "Wife"
	RelationUnresolved Relationship = "Unresolved"
)

// Sex is the closed set of sex markers. Unknown covers rows where the marker
// heuristic found nothing or an out-of-set value.
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "Unknown"
)

// PartMetadata identifies the document a record came from. It is derived once
// per document and shared by every record from that document.
type PartMetadata struct {
	ACNumber    int    `json:"ac_number"`
	ACName      string `json:"ac_name,omitempty"`
	PartNumber  int    `json:"part_number"`
	PSNumber    string `json:"ps_number,omitempty"`
	PSName      string `json:"ps_name,omitempty"`
	SectionName string `json:"section_name,omitempty"`
}

// VoterRecord is one elector row after decoding and assembly. Field content is
// fixed at assembly time; only the verification fields may be written later,
// and a re-run overwrites them rather than appending.
type VoterRecord struct {
	PartMetadata

	SerialNo        string       `json:"serial_no"`
	HouseNo         string       `json:"house_no,omitempty"`
	VoterName       string       `json:"voter_name"`
	VoterNameRaw    string       `json:"voter_name_raw,omitempty"`
	Relationship    Relationship `json:"relationship"`
	RelationName    string       `json:"relation_name,omitempty"`
	RelationNameRaw string       `json:"relation_name_raw,omitempty"`
	Sex             Sex          `json:"sex"`
	Age             int          `json:"age,omitempty"`     // 0 means absent
	EpicID          string       `json:"epic_id,omitempty"` // normalized, "" means absent
	SectionInfo     string       `json:"section_info,omitempty"`

	PDFFilename string `json:"pdf_filename,omitempty"`
	PageNumber  int    `json:"page_number,omitempty"`

	Verified      *bool           `json:"verified,omitempty"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty"`
	RemotePayload json.RawMessage `json:"remote_payload,omitempty"`
}

// Key returns the identity under which the record is persisted and looked up
// remotely.
func (r VoterRecord) Key() RecordKey {
	return RecordKey{
		EpicID:     r.EpicID,
		ACNumber:   r.ACNumber,
		PartNumber: r.PartNumber,
		SerialNo:   r.SerialNo,
	}
}

// RecordKey is the uniqueness key for persistence and idempotent ingestion.
type RecordKey struct {
	EpicID     string `json:"epic_id"`
	ACNumber   int    `json:"ac_number"`
	PartNumber int    `json:"part_number"`
	SerialNo   string `json:"serial_no"`
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%d/%d/%s/%s", k.ACNumber, k.PartNumber, k.SerialNo, k.EpicID)
}
