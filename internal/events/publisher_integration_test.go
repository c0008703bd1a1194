//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"rollscan/internal/domain"
	"rollscan/internal/events"
	"rollscan/pkg/testutil/containers"
)

func TestPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)
	redpanda.CreateTopic(ctx, t, "rollscan.voters")
	redpanda.CreateTopic(ctx, t, "rollscan.validations")

	publisher, err := events.NewPublisher(events.Config{Brokers: []string{redpanda.Broker}}, nil)
	require.NoError(t, err)
	require.NotNil(t, publisher)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = publisher.Run(runCtx)
	}()

	record := domain.VoterRecord{SerialNo: "12", VoterName: "RAM KUMAR DAS", EpicID: "WB/12/345/00000001"}
	record.ACNumber = 253
	record.PartNumber = 1
	require.NoError(t, publisher.PublishRecord(ctx, record))

	score := 1.0
	require.NoError(t, publisher.PublishValidation(ctx, domain.ValidationResult{
		Record:     record.Key(),
		Outcome:    domain.OutcomeValid,
		MatchScore: &score,
		CheckedAt:  time.Now().UTC(),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Broker),
		kgo.ConsumeTopics("rollscan.voters", "rollscan.validations"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	byType := make(map[string]events.Envelope)
	deadline := time.Now().Add(30 * time.Second)
	for len(byType) < 2 && time.Now().Before(deadline) {
		pollCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			var envelope events.Envelope
			require.NoError(t, json.Unmarshal(r.Value, &envelope))
			byType[envelope.Type] = envelope
		})
	}

	stop()
	<-done

	require.Len(t, byType, 2)

	var gotRecord domain.VoterRecord
	require.NoError(t, json.Unmarshal(byType[events.EventTypeRecord].Data, &gotRecord))
	require.Equal(t, "RAM KUMAR DAS", gotRecord.VoterName)

	var gotResult domain.ValidationResult
	require.NoError(t, json.Unmarshal(byType[events.EventTypeValidation].Data, &gotResult))
	require.Equal(t, domain.OutcomeValid, gotResult.Outcome)
	require.Equal(t, record.Key(), gotResult.Record)
}
