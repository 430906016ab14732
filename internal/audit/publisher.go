package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"casetrace/internal/domain"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrace_audit_published_total",
		Help: "Ledger entries published to the audit topic, by result",
	}, []string{"result"})
)

// Publisher pushes ledger entries to downstream consumers. The Kafka
// implementation is fail-open: the postgres ledger is the source of truth
// and a broker outage must never block or roll back a case mutation.
type Publisher interface {
	Publish(ctx context.Context, entry domain.AuditEntry) error
	Close()
}

// LogPublisher is the broker-less fallback: entries go to the structured
// log so the fan-out path stays exercised in development deployments.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, entry domain.AuditEntry) error {
	p.Logger.InfoContext(ctx, "audit entry",
		"case_number", entry.CaseNumber,
		"seq", entry.Seq,
		"action", entry.Action,
		"actor", entry.ActorID,
	)
	return nil
}

func (p LogPublisher) Close() {}

// KafkaPublisher publishes ledger entries to a Kafka topic, keyed by case
// number so per-case ordering is preserved within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	topics, err := admin.ListTopics(ctx, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("list kafka topics: %w", err)
	}
	if !topics.Has(topic) {
		if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
			client.Close()
			return nil, fmt.Errorf("create kafka topic %s: %w", topic, err)
		}
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

// wirePayload is the JSON structure written to the topic.
type wirePayload struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	CaseNumber string `json:"case_number"`
	Timestamp  string `json:"timestamp"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Note       string `json:"note,omitempty"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := json.Marshal(wirePayload{
		ID:         entry.ID.String(),
		Seq:        entry.Seq,
		CaseNumber: string(entry.CaseNumber),
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		ActorID:    entry.ActorID,
		Action:     string(entry.Action),
		FromStatus: string(entry.FromStatus),
		ToStatus:   string(entry.ToStatus),
		Note:       entry.Note,
	})
	if err != nil {
		publishedTotal.WithLabelValues("marshal_error").Inc()
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.CaseNumber),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		publishedTotal.WithLabelValues("produce_error").Inc()
		return fmt.Errorf("produce audit record: %w", err)
	}
	publishedTotal.WithLabelValues("ok").Inc()
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
