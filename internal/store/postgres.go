package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rollscan/internal/domain"
)

// PostgresStore persists voter records in PostgreSQL via database/sql and the
// lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the voters table and its indexes if they do not exist.
// The table deliberately carries no unique constraint on the record key:
// idempotency is enforced by the conditional insert in Save, and the exact
// duplicates a racing batch can still produce are cleaned up by
// RemoveExactDuplicates.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS voters (
	id                BIGSERIAL PRIMARY KEY,
	ac_number         INTEGER NOT NULL,
	ac_name           TEXT NOT NULL DEFAULT '',
	part_number       INTEGER NOT NULL,
	ps_number         TEXT NOT NULL DEFAULT '',
	ps_name           TEXT NOT NULL DEFAULT '',
	section_name      TEXT NOT NULL DEFAULT '',
	serial_no         TEXT NOT NULL,
	house_no          TEXT NOT NULL DEFAULT '',
	voter_name        TEXT NOT NULL DEFAULT '',
	voter_name_raw    TEXT NOT NULL DEFAULT '',
	relationship      TEXT NOT NULL DEFAULT '',
	relation_name     TEXT NOT NULL DEFAULT '',
	relation_name_raw TEXT NOT NULL DEFAULT '',
	sex               TEXT NOT NULL DEFAULT '',
	age               INTEGER NOT NULL DEFAULT 0,
	epic_id           TEXT NOT NULL DEFAULT '',
	section_info      TEXT NOT NULL DEFAULT '',
	pdf_filename      TEXT NOT NULL DEFAULT '',
	page_number       INTEGER NOT NULL DEFAULT 0,
	verified          BOOLEAN,
	verified_at       TIMESTAMPTZ,
	remote_payload    JSONB
);
CREATE INDEX IF NOT EXISTS idx_voters_ac_part ON voters (ac_number, part_number);
CREATE INDEX IF NOT EXISTS idx_voters_epic ON voters (epic_id) WHERE epic_id <> '';
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure voters schema: %w", err)
	}
	return nil
}

const voterColumns = `
	ac_number, ac_name, part_number, ps_number, ps_name, section_name,
	serial_no, house_no, voter_name, voter_name_raw,
	relationship, relation_name, relation_name_raw,
	sex, age, epic_id, section_info, pdf_filename, page_number,
	verified, verified_at, remote_payload`

func (s *PostgresStore) Save(ctx context.Context, record domain.VoterRecord) (bool, error) {
	q := `
		INSERT INTO voters (` + voterColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		WHERE NOT EXISTS (
			SELECT 1 FROM voters
			WHERE epic_id = $16 AND ac_number = $1 AND part_number = $3 AND serial_no = $7
		)`
	res, err := s.db.ExecContext(ctx, q,
		record.ACNumber, record.ACName, record.PartNumber, record.PSNumber, record.PSName, record.SectionName,
		record.SerialNo, record.HouseNo, record.VoterName, record.VoterNameRaw,
		string(record.Relationship), record.RelationName, record.RelationNameRaw,
		string(record.Sex), record.Age, record.EpicID, record.SectionInfo, record.PDFFilename, record.PageNumber,
		record.Verified, record.VerifiedAt, nullJSON(record.RemotePayload),
	)
	if err != nil {
		return false, fmt.Errorf("save voter record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save voter record: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key domain.RecordKey) (domain.VoterRecord, error) {
	q := `
		SELECT ` + voterColumns + `
		FROM voters
		WHERE epic_id = $1 AND ac_number = $2 AND part_number = $3 AND serial_no = $4
		ORDER BY id
		LIMIT 1`
	record, err := scanVoter(s.db.QueryRowContext(ctx, q, key.EpicID, key.ACNumber, key.PartNumber, key.SerialNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VoterRecord{}, ErrNotFound
		}
		return domain.VoterRecord{}, fmt.Errorf("find voter record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByAC(ctx context.Context, acNumber int, page Page) ([]domain.VoterRecord, int, error) {
	return s.list(ctx, "ac_number = $1", []any{acNumber}, page)
}

func (s *PostgresStore) ListByPart(ctx context.Context, acNumber, partNumber int, page Page) ([]domain.VoterRecord, int, error) {
	return s.list(ctx, "ac_number = $1 AND part_number = $2", []any{acNumber, partNumber}, page)
}

func (s *PostgresStore) list(ctx context.Context, where string, args []any, page Page) ([]domain.VoterRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM voters WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count voter records: %w", err)
	}

	q := `
		SELECT ` + voterColumns + `
		FROM voters
		WHERE ` + where + `
		ORDER BY part_number, length(serial_no), serial_no`
	n := len(args)
	if page.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", n+1)
		args = append(args, page.Limit)
		n++
	}
	if page.Offset > 0 {
		q += fmt.Sprintf(" OFFSET $%d", n+1)
		args = append(args, page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list voter records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.VoterRecord, 0)
	for rows.Next() {
		record, err := scanVoter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list voter records: %w", err)
		}
		records = append(records, record)
	}
	return records, total, rows.Err()
}

func (s *PostgresStore) CountByPart(ctx context.Context, acNumber, partNumber int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM voters WHERE ac_number = $1 AND part_number = $2",
		acNumber, partNumber,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count voter records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, key domain.RecordKey, verified bool, result domain.ValidationResult, payload json.RawMessage) error {
	q := `
		UPDATE voters
		SET verified = $1, verified_at = $2, remote_payload = $3
		WHERE epic_id = $4 AND ac_number = $5 AND part_number = $6 AND serial_no = $7`
	res, err := s.db.ExecContext(ctx, q,
		verified, result.CheckedAt, nullJSON(payload),
		key.EpicID, key.ACNumber, key.PartNumber, key.SerialNo,
	)
	if err != nil {
		return fmt.Errorf("mark voter verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark voter verified: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) VerificationStats(ctx context.Context, acNumber int) (VerificationStats, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE verified),
			COUNT(*) FILTER (WHERE NOT verified),
			COUNT(*) FILTER (WHERE verified IS NULL)
		FROM voters
		WHERE ac_number = $1`
	var stats VerificationStats
	err := s.db.QueryRowContext(ctx, q, acNumber).Scan(&stats.Total, &stats.Verified, &stats.Failed, &stats.Pending)
	if err != nil {
		return VerificationStats{}, fmt.Errorf("verification stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) EpicCollisions(ctx context.Context, acNumber int) ([]EpicCollision, error) {
	q := `
		SELECT epic_id, COUNT(*)
		FROM voters
		WHERE ac_number = $1 AND epic_id <> ''
		GROUP BY epic_id
		HAVING COUNT(*) > 1
		ORDER BY epic_id`
	rows, err := s.db.QueryContext(ctx, q, acNumber)
	if err != nil {
		return nil, fmt.Errorf("epic collisions: %w", err)
	}
	defer rows.Close()

	collisions := make([]EpicCollision, 0)
	for rows.Next() {
		var c EpicCollision
		if err := rows.Scan(&c.EpicID, &c.Count); err != nil {
			return nil, fmt.Errorf("epic collisions: %w", err)
		}
		collisions = append(collisions, c)
	}
	return collisions, rows.Err()
}

func (s *PostgresStore) RemoveExactDuplicates(ctx context.Context) (int64, error) {
	q := `
		DELETE FROM voters a
		USING voters b
		WHERE a.id > b.id
		  AND a.ac_number = b.ac_number
		  AND a.part_number = b.part_number
		  AND a.serial_no = b.serial_no
		  AND a.epic_id = b.epic_id
		  AND a.house_no = b.house_no
		  AND a.voter_name = b.voter_name
		  AND a.relationship = b.relationship
		  AND a.relation_name = b.relation_name
		  AND a.sex = b.sex
		  AND a.age = b.age`
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("remove exact duplicates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove exact duplicates: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoter(row rowScanner) (domain.VoterRecord, error) {
	var (
		record       domain.VoterRecord
		relationship string
		sex          string
		verified     sql.NullBool
		verifiedAt   sql.NullTime
		payload      []byte
	)
	err := row.Scan(
		&record.ACNumber, &record.ACName, &record.PartNumber, &record.PSNumber, &record.PSName, &record.SectionName,
		&record.SerialNo, &record.HouseNo, &record.VoterName, &record.VoterNameRaw,
		&relationship, &record.RelationName, &record.RelationNameRaw,
		&sex, &record.Age, &record.EpicID, &record.SectionInfo, &record.PDFFilename, &record.PageNumber,
		&verified, &verifiedAt, &payload,
	)
	if err != nil {
		return domain.VoterRecord{}, err
	}
	record.Relationship = domain.Relationship(relationship)
	record.Sex = domain.Sex(sex)
	if verified.Valid {
		record.Verified = &verified.Bool
	}
	if verifiedAt.Valid {
		record.VerifiedAt = &verifiedAt.Time
	}
	if len(payload) > 0 {
		record.RemotePayload = json.RawMessage(payload)
	}
	return record, nil
}

func nullJSON(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return []byte(payload)
}
