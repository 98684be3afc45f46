package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"admin-auth/internal/models"
)

// Producer is satisfied by *client.KafkaProducer.
type Producer interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error
}

type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Write keys messages by event bucket so one identity stays on one partition.
func (s *KafkaSink) Write(ctx context.Context, event *models.SecurityEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := []byte(fmt.Sprintf("%d", event.EventBucket))
	return s.producer.ProduceMessage(ctx, key, value, map[string]string{
		"event_type": event.EventType,
	})
}

// Indexer is satisfied by *client.ESClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, document interface{}) error
}

type ElasticsearchSink struct {
	indexer Indexer
	index   string
}

func NewElasticsearchSink(indexer Indexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{indexer: indexer, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, event *models.SecurityEvent) error {
	return s.indexer.IndexDocument(ctx, s.index, event.EventID, event)
}

// Execer is satisfied by *client.ClickHouseClient.
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

type ClickhouseSink struct {
	conn  Execer
	query string
}

func NewClickhouseSink(conn Execer, table string) *ClickhouseSink {
	return &ClickhouseSink{
		conn: conn,
		query: fmt.Sprintf(`INSERT INTO %s (event_id, event_bucket, event_date, event_time, event_type,
            identity, reason, token_id, source_ip, request_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
	}
}

func (s *ClickhouseSink) Name() string { return "clickhouse" }

func (s *ClickhouseSink) Write(ctx context.Context, event *models.SecurityEvent) error {
	return s.conn.Exec(ctx, s.query,
		event.EventID, uint16(event.EventBucket), event.EventDate, event.EventTime, event.EventType,
		event.Identity, event.Reason, event.TokenID, event.SourceIP, event.RequestID)
}
