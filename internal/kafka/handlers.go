package kafka

import (
	"context"
	"encoding/json"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/feed"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/pkg/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handlers apply back-office submission events to the local submissions.
// Events for other users are skipped.
type Handlers struct {
	sink    feed.Sink
	userID  func() string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewHandlers(sink feed.Sink, userID func() string, m *metrics.Metrics, logger zerolog.Logger) *Handlers {
	return &Handlers{
		sink:    sink,
		userID:  userID,
		metrics: m,
		logger:  logger.With().Str("component", "kafka-handlers").Logger(),
	}
}

func (h *Handlers) HandleSubmissionCreated(ctx context.Context, msg kafka.Message) error {
	var event events.SubmissionCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.metrics.IncFeedMessage("kafka", "invalid")
		h.logger.Error().Err(err).Msg("Failed to unmarshal submission.created event")
		return err
	}
	if !h.mine(event.UserID) {
		return nil
	}

	h.metrics.IncFeedMessage("kafka", "observed")
	h.logger.Info().
		Str("submissionId", event.SubmissionID).
		Str("status", event.Status).
		Msg("Submission queued for judging")
	return nil
}

func (h *Handlers) HandleSubmissionJudged(ctx context.Context, msg kafka.Message) error {
	var event events.SubmissionJudgedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.metrics.IncFeedMessage("kafka", "invalid")
		h.logger.Error().Err(err).Msg("Failed to unmarshal submission.judged event")
		return err
	}
	if !h.mine(event.UserID) {
		return nil
	}

	status := "ignored"
	if h.sink.ApplyVerdict(feed.VerdictFromJudged(event)) {
		status = "applied"
	}
	h.metrics.IncFeedMessage("kafka", status)

	h.logger.Info().
		Str("submissionId", event.SubmissionID).
		Str("verdict", event.Verdict).
		Str("status", status).
		Msg("Processing submission.judged")
	return nil
}

func (h *Handlers) mine(userID string) bool {
	if h.userID == nil {
		return true
	}
	own := h.userID()
	return own == "" || own == userID
}

func (h *Handlers) RegisterAll(consumer *Consumer) {
	consumer.RegisterHandler(events.TopicSubmissionCreated, h.HandleSubmissionCreated)
	consumer.RegisterHandler(events.TopicSubmissionJudged, h.HandleSubmissionJudged)
}

// Topics lists the topics RegisterAll subscribes to.
func Topics() []string {
	return []string{events.TopicSubmissionCreated, events.TopicSubmissionJudged}
}
