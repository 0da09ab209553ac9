package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/core/services"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// LogSink writes every event to the application log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event model.Event) error {
	s.logger.Info("Camp event",
		zap.String("event", string(event.Type)),
		zap.String("camp_id", event.CampID),
		zap.String("donor_id", event.DonorID),
		zap.String("actor_id", event.ActorID),
		zap.String("ref_id", event.RefID),
		zap.Time("occurred_at", event.OccurredAt))
	return nil
}

// Publisher sends a message body to a broker under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// AMQPSink publishes events as JSON with the event type as routing key
type AMQPSink struct {
	publisher Publisher
}

func NewAMQPSink(publisher Publisher) *AMQPSink {
	return &AMQPSink{publisher: publisher}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(ctx context.Context, event model.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return s.publisher.Publish(ctx, string(event.Type), body)
}

// EmailSender sends a plain-text email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EligibilityChecker reports when a donor may next register
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, donorID string) (*services.Eligibility, error)
}

// EmailSink emails the donor the event concerns
type EmailSink struct {
	users       db.UserDirectory
	sender      EmailSender
	eligibility EligibilityChecker
	logger      *zap.Logger
}

func NewEmailSink(users db.UserDirectory, sender EmailSender, eligibility EligibilityChecker, logger *zap.Logger) *EmailSink {
	return &EmailSink{users: users, sender: sender, eligibility: eligibility, logger: logger}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, event model.Event) error {
	donor, err := s.users.GetUser(ctx, event.DonorID)
	if errors.Is(err, db.ErrNotFound) {
		s.logger.Debug("No user for event, skipping email", zap.String("donor_id", event.DonorID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up donor: %w", err)
	}
	if donor.Email == "" {
		s.logger.Debug("Donor has no email address", zap.String("donor_id", donor.ID))
		return nil
	}

	subject, body, err := s.render(ctx, event, donor)
	if err != nil {
		return err
	}

	if err := s.sender.SendEmail(ctx, donor.Email, subject, body); err != nil {
		return fmt.Errorf("failed to email %s: %w", donor.ID, err)
	}
	return nil
}

func (s *EmailSink) render(ctx context.Context, event model.Event, donor *model.User) (string, string, error) {
	camp := event.CampName
	if camp == "" {
		camp = "your blood donation camp"
	}
	greeting := fmt.Sprintf("Hi %s,\n\n", donor.FirstName)

	switch event.Type {
	case model.EventRegistrationConfirmed:
		return fmt.Sprintf("Registration confirmed: %s", camp),
			greeting + fmt.Sprintf("You're registered for %s.\nYour reference is %s.\n\nIf you can no longer attend, please cancel so someone else can take the slot.\n", camp, event.RefID),
			nil

	case model.EventAttendanceRecorded:
		return fmt.Sprintf("Thanks for coming to %s", camp),
			greeting + fmt.Sprintf("We've recorded your attendance at %s. Thank you for coming along.\n", camp),
			nil

	case model.EventDonationRecorded:
		body := greeting + fmt.Sprintf("Thank you for donating blood at %s.\n", camp)
		if s.eligibility != nil {
			status, err := s.eligibility.CheckEligibility(ctx, donor.ID)
			if err != nil {
				return "", "", fmt.Errorf("failed to compute next eligible date: %w", err)
			}
			body += fmt.Sprintf("You can register for another camp from %s.\n", status.NextEligibleDate.Format("Mon Jan 02 2006"))
		}
		return "Thank you for your donation", body, nil
	}

	return "", "", fmt.Errorf("unknown event type %q", event.Type)
}
