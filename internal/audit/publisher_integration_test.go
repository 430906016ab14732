//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"casetrace/internal/audit"
	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	broker := containers.NewRedpandaContainer(t).Broker
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "casetrace.audit.test"
	pub, err := audit.NewKafkaPublisher(ctx, []string{broker}, topic)
	require.NoError(t, err, "publisher must create the topic on first connect")
	defer pub.Close()

	num := id.FormatCaseNumber(2026, 7)
	entries := []domain.AuditEntry{
		{
			ID:         uuid.New(),
			Seq:        1,
			CaseNumber: num,
			Timestamp:  time.Now().UTC(),
			ActorID:    "system",
			Action:     domain.AuditCaseCreated,
			ToStatus:   domain.StatusSubmitted,
		},
		{
			ID:         uuid.New(),
			Seq:        2,
			CaseNumber: num,
			Timestamp:  time.Now().UTC(),
			ActorID:    uuid.NewString(),
			Action:     domain.AuditCaseVerified,
			FromStatus: domain.StatusSubmitted,
			ToStatus:   domain.StatusVerified,
			Note:       "checked with reporter",
		},
	}
	for _, entry := range entries {
		require.NoError(t, pub.Publish(ctx, entry))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < len(entries) && time.Now().Before(deadline) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}
	require.Len(t, records, len(entries))

	// Same case number keys to the same partition, so order is preserved.
	for i, record := range records {
		require.Equal(t, string(num), string(record.Key))

		var payload struct {
			Seq        int64  `json:"seq"`
			CaseNumber string `json:"case_number"`
			Action     string `json:"action"`
			ToStatus   string `json:"to_status"`
			Note       string `json:"note"`
		}
		require.NoError(t, json.Unmarshal(record.Value, &payload))
		require.Equal(t, entries[i].Seq, payload.Seq)
		require.Equal(t, string(num), payload.CaseNumber)
		require.Equal(t, string(entries[i].Action), payload.Action)
		require.Equal(t, string(entries[i].ToStatus), payload.ToStatus)
		require.Equal(t, entries[i].Note, payload.Note)
	}
}
