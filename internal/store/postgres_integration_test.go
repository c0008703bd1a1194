//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollscan/internal/domain"
	"rollscan/internal/store"
	"rollscan/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "voters"))
}

func testRecord(ac, part int, serial, epic string) domain.VoterRecord {
	r := domain.VoterRecord{
		SerialNo:     serial,
		HouseNo:      "5/1",
		VoterName:    "RAM KUMAR DAS",
		Relationship: domain.RelationFather,
		RelationName: "SHYAM DAS",
		Sex:          domain.SexMale,
		Age:          52,
		EpicID:       epic,
		PDFFilename:  "AC253PART1.pdf",
		PageNumber:   3,
	}
	r.ACNumber = ac
	r.PartNumber = part
	return r
}

func (s *PostgresStoreSuite) TestSaveRoundTrip() {
	ctx := context.Background()
	r := testRecord(253, 1, "12", "WB/12/345/67890123")

	inserted, err := s.store.Save(ctx, r)
	s.Require().NoError(err)
	s.True(inserted)

	got, err := s.store.FindByKey(ctx, r.Key())
	s.Require().NoError(err)
	s.Equal(r.VoterName, got.VoterName)
	s.Equal(r.Relationship, got.Relationship)
	s.Equal(r.Age, got.Age)
	s.Nil(got.Verified)
}

func (s *PostgresStoreSuite) TestSaveConflictIsNoOp() {
	ctx := context.Background()
	r := testRecord(253, 1, "12", "WB/12/345/67890123")

	inserted, err := s.store.Save(ctx, r)
	s.Require().NoError(err)
	s.True(inserted)

	changed := r
	changed.VoterName = "SOMEONE ELSE"
	inserted, err = s.store.Save(ctx, changed)
	s.Require().NoError(err)
	s.False(inserted)

	got, err := s.store.FindByKey(ctx, r.Key())
	s.Require().NoError(err)
	s.Equal("RAM KUMAR DAS", got.VoterName)
}

func (s *PostgresStoreSuite) TestFindByKeyNotFound() {
	_, err := s.store.FindByKey(context.Background(), domain.RecordKey{EpicID: "WB/X", ACNumber: 1, PartNumber: 1, SerialNo: "1"})
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByACPagination() {
	ctx := context.Background()
	for _, r := range []domain.VoterRecord{
		testRecord(253, 2, "3", "WB/A"),
		testRecord(253, 1, "10", "WB/B"),
		testRecord(253, 1, "2", "WB/C"),
		testRecord(254, 1, "1", "WB/D"),
	} {
		_, err := s.store.Save(ctx, r)
		s.Require().NoError(err)
	}

	all, total, err := s.store.ListByAC(ctx, 253, store.Page{})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(all, 3)
	s.Equal("2", all[0].SerialNo)
	s.Equal("10", all[1].SerialNo)
	s.Equal(2, all[2].PartNumber)

	page, total, err := s.store.ListByPart(ctx, 253, 1, store.Page{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(page, 1)
	s.Equal("10", page[0].SerialNo)
}

func (s *PostgresStoreSuite) TestMarkVerifiedOverwrites() {
	ctx := context.Background()
	r := testRecord(253, 1, "5", "WB/12/345/00000001")
	_, err := s.store.Save(ctx, r)
	s.Require().NoError(err)

	first := domain.ValidationResult{CheckedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.store.MarkVerified(ctx, r.Key(), false, first, json.RawMessage(`{"try":1}`)))

	second := domain.ValidationResult{CheckedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.store.MarkVerified(ctx, r.Key(), true, second, json.RawMessage(`{"try":2}`)))

	got, err := s.store.FindByKey(ctx, r.Key())
	s.Require().NoError(err)
	s.Require().NotNil(got.Verified)
	s.True(*got.Verified)
	s.Require().NotNil(got.VerifiedAt)
	s.True(got.VerifiedAt.Equal(second.CheckedAt))
	s.JSONEq(`{"try":2}`, string(got.RemotePayload))

	err = s.store.MarkVerified(ctx, domain.RecordKey{EpicID: "WB/X", ACNumber: 1, PartNumber: 1, SerialNo: "1"}, true, first, nil)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestVerificationStats() {
	ctx := context.Background()
	records := []domain.VoterRecord{
		testRecord(253, 1, "1", "WB/A"),
		testRecord(253, 1, "2", "WB/B"),
		testRecord(253, 1, "3", "WB/C"),
	}
	for _, r := range records {
		_, err := s.store.Save(ctx, r)
		s.Require().NoError(err)
	}
	now := domain.ValidationResult{CheckedAt: time.Now().UTC()}
	s.Require().NoError(s.store.MarkVerified(ctx, records[0].Key(), true, now, nil))
	s.Require().NoError(s.store.MarkVerified(ctx, records[1].Key(), false, now, nil))

	stats, err := s.store.VerificationStats(ctx, 253)
	s.Require().NoError(err)
	s.Equal(store.VerificationStats{Total: 3, Verified: 1, Failed: 1, Pending: 1}, stats)
}

func (s *PostgresStoreSuite) TestEpicCollisionsAndDuplicateCleanup() {
	ctx := context.Background()

	// Two rows sharing an EPIC on different serials collide but are not exact
	// duplicates.
	collideA := testRecord(253, 1, "1", "WB/12/345/00000001")
	collideB := testRecord(253, 1, "2", "WB/12/345/00000001")
	for _, r := range []domain.VoterRecord{collideA, collideB} {
		_, err := s.store.Save(ctx, r)
		s.Require().NoError(err)
	}

	// Force an exact duplicate row past the conditional insert.
	dup := testRecord(253, 1, "1", "WB/12/345/00000001")
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO voters (ac_number, part_number, serial_no, epic_id, house_no, voter_name, relationship, relation_name, sex, age)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		dup.ACNumber, dup.PartNumber, dup.SerialNo, dup.EpicID, dup.HouseNo, dup.VoterName,
		string(dup.Relationship), dup.RelationName, string(dup.Sex), dup.Age,
	)
	s.Require().NoError(err)

	collisions, err := s.store.EpicCollisions(ctx, 253)
	s.Require().NoError(err)
	s.Require().Len(collisions, 1)
	s.Equal(3, collisions[0].Count)

	removed, err := s.store.RemoveExactDuplicates(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	count, err := s.store.CountByPart(ctx, 253, 1)
	s.Require().NoError(err)
	s.Equal(2, count)
}
