package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// RunEvent is the payload published after every finished run
type RunEvent struct {
	RunID          string    `json:"run_id"`
	PlanID         string    `json:"plan_id"`
	Mode           string    `json:"mode"`
	DryRun         bool      `json:"dry_run"`
	CompletedTasks int       `json:"completed_tasks"`
	FailedTasks    int       `json:"failed_tasks"`
	SkippedTasks   int       `json:"skipped_tasks"`
	RecordsWritten int       `json:"records_written"`
	SuccessRate    float64   `json:"success_rate"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Publisher sends run events to a Kafka topic
type Publisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// NewPublisher creates a new run event publisher
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: "market-data-sync",
		},
	}

	return &Publisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// PublishRunCompleted announces a finished run
func (p *Publisher) PublishRunCompleted(ctx context.Context, result model.ExecutionResult) error {
	event := RunEvent{
		RunID:          result.RunID,
		PlanID:         result.PlanID,
		Mode:           string(result.Mode),
		DryRun:         result.DryRun,
		CompletedTasks: result.CompletedTasks,
		FailedTasks:    result.FailedTasks,
		SkippedTasks:   result.SkippedTasks,
		RecordsWritten: result.RecordsWritten,
		SuccessRate:    result.SuccessRate,
		FinishedAt:     result.FinishedAt,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(result.RunID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish run event",
			zap.String("topic", p.topic),
			zap.String("run_id", result.RunID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Run event published",
		zap.String("topic", p.topic),
		zap.String("run_id", result.RunID))

	return nil
}

// Close closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
