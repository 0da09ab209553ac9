package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
	"github.com/jakechorley/blood-camps/pkg/metrics"
)

// DonationWriter is the write side of the donation store
type DonationWriter interface {
	InsertDonation(ctx context.Context, d *db.Donation) (bool, error)
}

// PendingDonation is a donation whose write failed after attendance was committed
type PendingDonation struct {
	Donation      db.Donation
	Attempts      int
	LastError     string
	FirstFailedAt time.Time
}

// DonationRecorder writes donations produced by attendance marking. A failed write is
// queued for retry and reported as an anomaly instead of failing the caller.
type DonationRecorder struct {
	store       DonationWriter
	notifier    Notifier
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	pending []*PendingDonation
}

func NewDonationRecorder(store DonationWriter, notifier Notifier, maxAttempts int, logger *zap.Logger) *DonationRecorder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DonationRecorder{
		store:       store,
		notifier:    orNop(notifier),
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Record makes one attempt to write d. It returns false if the donation was queued for retry.
func (r *DonationRecorder) Record(ctx context.Context, d db.Donation) bool {
	if _, err := r.write(ctx, d); err != nil {
		metrics.DonationWriteFailures.Inc()
		r.logger.Error("Failed to record donation after attendance was committed",
			zap.String("donation_id", d.ID),
			zap.String("donor_id", d.DonorID),
			zap.String("camp_id", d.CampID),
			zap.Error(err))
		r.enqueue(d, err)
		return false
	}
	return true
}

// RetryPending retries queued donations that have attempts left
func (r *DonationRecorder) RetryPending(ctx context.Context) (recorded, stillPending int) {
	r.mu.Lock()
	batch := make([]*PendingDonation, len(r.pending))
	copy(batch, r.pending)
	r.mu.Unlock()

	done := make(map[string]bool)
	for _, p := range batch {
		r.mu.Lock()
		exhausted := p.Attempts >= r.maxAttempts
		r.mu.Unlock()
		if exhausted {
			continue
		}

		_, err := r.write(ctx, p.Donation)

		r.mu.Lock()
		p.Attempts++
		attempts := p.Attempts
		if err != nil {
			p.LastError = err.Error()
		}
		r.mu.Unlock()

		if err != nil {
			r.logger.Warn("Donation retry failed",
				zap.String("donation_id", p.Donation.ID),
				zap.Int("attempts", attempts),
				zap.Error(err))
			continue
		}
		done[p.Donation.ID] = true
		recorded++
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.pending[:0]
	for _, p := range r.pending {
		if !done[p.Donation.ID] {
			remaining = append(remaining, p)
		}
	}
	r.pending = remaining
	metrics.PendingDonations.Set(float64(len(r.pending)))

	if recorded > 0 {
		r.logger.Info("Recorded pending donations", zap.Int("recorded", recorded), zap.Int("pending", len(r.pending)))
	}
	return recorded, len(r.pending)
}

// Anomalies returns a snapshot of donations still waiting to be written
func (r *DonationRecorder) Anomalies() []PendingDonation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingDonation, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, *p)
	}
	return out
}

// Restore writes d once without queueing on failure and drops any queued copy once it is
// stored. created is false when the donation already existed.
func (r *DonationRecorder) Restore(ctx context.Context, d db.Donation) (created bool, err error) {
	created, err = r.write(ctx, d)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.pending[:0]
	for _, p := range r.pending {
		if p.Donation.ID != d.ID {
			remaining = append(remaining, p)
		}
	}
	r.pending = remaining
	metrics.PendingDonations.Set(float64(len(r.pending)))
	return created, nil
}

func (r *DonationRecorder) write(ctx context.Context, d db.Donation) (bool, error) {
	created, err := r.store.InsertDonation(ctx, &d)
	if err != nil {
		return false, err
	}
	if created {
		r.logger.Info("Donation recorded",
			zap.String("donation_id", d.ID),
			zap.String("donor_id", d.DonorID),
			zap.String("camp_id", d.CampID))
		r.notifier.Notify(model.Event{
			Type:       model.EventDonationRecorded,
			CampID:     d.CampID,
			DonorID:    d.DonorID,
			ActorID:    d.RecordedBy,
			RefID:      d.ID,
			OccurredAt: d.CreatedAt,
		})
	}
	return created, nil
}

func (r *DonationRecorder) enqueue(d db.Donation, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p.Donation.ID == d.ID {
			p.Attempts++
			p.LastError = err.Error()
			return
		}
	}
	r.pending = append(r.pending, &PendingDonation{
		Donation:      d,
		Attempts:      1,
		LastError:     err.Error(),
		FirstFailedAt: r.now(),
	})
	metrics.PendingDonations.Set(float64(len(r.pending)))
}
