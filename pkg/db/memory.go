package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jakechorley/blood-camps/pkg/core/model"
)

// MemDB is an in-memory Database. A single mutex serialises every operation, so
// ReserveAndRegister's check-and-increment is linearizable.
type MemDB struct {
	mu            sync.Mutex
	camps         map[string]*Camp
	campOrder     []string
	registrations []*Registration
	attendance    []*Attendance
	donations     []*Donation
	users         map[string]model.User
}

// NewMemDB creates an empty in-memory database
func NewMemDB() *MemDB {
	return &MemDB{
		camps: make(map[string]*Camp),
		users: make(map[string]model.User),
	}
}

// PutUser adds or replaces a user in the directory
func (m *MemDB) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemDB) UpsertUsers(ctx context.Context, users []model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.users[u.ID] = u
	}
	return nil
}

func (m *MemDB) GetUser(ctx context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemDB) InsertCamp(ctx context.Context, camp *Camp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *camp
	m.camps[c.ID] = &c
	m.campOrder = append(m.campOrder, c.ID)
	return nil
}

func (m *MemDB) UpdateCamp(ctx context.Context, camp *Camp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.camps[camp.ID]
	if !ok {
		return ErrNotFound
	}
	if camp.MaxDonors < existing.CurrentDonors {
		return ErrCapacityBelowOccupied
	}
	existing.Name = camp.Name
	existing.Description = camp.Description
	existing.Location = camp.Location
	existing.Date = camp.Date
	existing.StartTime = camp.StartTime
	existing.EndTime = camp.EndTime
	existing.MaxDonors = camp.MaxDonors
	existing.UpdatedAt = camp.UpdatedAt
	camp.CurrentDonors = existing.CurrentDonors
	return nil
}

func (m *MemDB) SetCampActive(ctx context.Context, campID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.camps[campID]
	if !ok {
		return ErrNotFound
	}
	c.Active = active
	return nil
}

func (m *MemDB) GetCamp(ctx context.Context, campID string) (*Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.camps[campID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemDB) ListCamps(ctx context.Context) ([]Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	camps := make([]Camp, 0, len(m.campOrder))
	for _, id := range m.campOrder {
		camps = append(camps, *m.camps[id])
	}
	return camps, nil
}

func (m *MemDB) activeRegistration(campID, donorID string) *Registration {
	for _, r := range m.registrations {
		if r.CampID == campID && r.DonorID == donorID && r.Status == StatusRegistered {
			return r
		}
	}
	return nil
}

func (m *MemDB) countActive(campID string) int {
	n := 0
	for _, r := range m.registrations {
		if r.CampID == campID && r.Status == StatusRegistered {
			n++
		}
	}
	return n
}

func (m *MemDB) ReserveAndRegister(ctx context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.camps[reg.CampID]
	if !ok {
		return ErrNotFound
	}
	if !c.Active {
		return ErrCampNotAcceptingDonors
	}
	if m.activeRegistration(reg.CampID, reg.DonorID) != nil {
		return ErrAlreadyRegistered
	}
	if c.CurrentDonors >= c.MaxDonors {
		return ErrCampFull
	}
	c.CurrentDonors++
	r := *reg
	r.Status = StatusRegistered
	m.registrations = append(m.registrations, &r)
	reg.Status = StatusRegistered
	return nil
}

func (m *MemDB) CancelRegistration(ctx context.Context, campID, donorID string, at time.Time) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.activeRegistration(campID, donorID)
	if r == nil {
		return nil, ErrNotRegistered
	}
	r.Status = StatusCancelled
	cancelledAt := at
	r.CancelledAt = &cancelledAt
	if c, ok := m.camps[campID]; ok {
		c.CurrentDonors = m.countActive(campID)
	}
	cp := *r
	return &cp, nil
}

func (m *MemDB) GetActiveRegistration(ctx context.Context, campID, donorID string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.activeRegistration(campID, donorID)
	if r == nil {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemDB) ListRegistrationsByCamp(ctx context.Context, campID string) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regs []Registration
	for _, r := range m.registrations {
		if r.CampID == campID {
			regs = append(regs, *r)
		}
	}
	return regs, nil
}

func (m *MemDB) ListRegistrationsByDonor(ctx context.Context, donorID string) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regs []Registration
	for _, r := range m.registrations {
		if r.DonorID == donorID {
			regs = append(regs, *r)
		}
	}
	return regs, nil
}

func (m *MemDB) ReconcileCampCounter(ctx context.Context, campID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.camps[campID]
	if !ok {
		return 0, ErrNotFound
	}
	c.CurrentDonors = m.countActive(campID)
	return c.CurrentDonors, nil
}

func (m *MemDB) findAttendance(campID, donorID string) *Attendance {
	for _, a := range m.attendance {
		if a.CampID == campID && a.DonorID == donorID {
			return a
		}
	}
	return nil
}

func (m *MemDB) InsertAttendance(ctx context.Context, a *Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeRegistration(a.CampID, a.DonorID) == nil {
		return ErrNotRegistered
	}
	if m.findAttendance(a.CampID, a.DonorID) != nil {
		return ErrDuplicateAttendance
	}
	cp := *a
	m.attendance = append(m.attendance, &cp)
	return nil
}

func (m *MemDB) GetAttendance(ctx context.Context, campID, donorID string) (*Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAttendance(campID, donorID)
	if a == nil {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemDB) MarkBloodDonated(ctx context.Context, campID, donorID, notes string) (*Attendance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAttendance(campID, donorID)
	if a == nil {
		return nil, false, ErrNotFound
	}
	already := a.BloodDonated
	a.BloodDonated = true
	a.Notes = notes
	cp := *a
	return &cp, already, nil
}

func (m *MemDB) ListAttendanceByCamp(ctx context.Context, campID string) ([]Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attendance
	for _, a := range m.attendance {
		if a.CampID == campID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MemDB) InsertDonation(ctx context.Context, d *Donation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.donations {
		if existing.ID == d.ID {
			return false, nil
		}
	}
	cp := *d
	m.donations = append(m.donations, &cp)
	return true, nil
}

func (m *MemDB) LastCampDonation(ctx context.Context, donorID string) (*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Donation
	for _, d := range m.donations {
		if d.DonorID != donorID || !d.IsCampDonation {
			continue
		}
		if latest == nil || d.DonationDate.After(latest.DonationDate) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemDB) CountCampDonationsSince(ctx context.Context, donorID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.donations {
		if d.DonorID == donorID && d.IsCampDonation && !d.DonationDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemDB) ListDonationsByDonor(ctx context.Context, donorID string) ([]Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Donation
	for _, d := range m.donations {
		if d.DonorID == donorID {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DonationDate.Equal(out[j].DonationDate) {
			return out[i].DonationDate.After(out[j].DonationDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Donations returns every stored donation for a donor
func (m *MemDB) Donations(donorID string) []Donation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Donation
	for _, d := range m.donations {
		if d.DonorID == donorID {
			out = append(out, *d)
		}
	}
	return out
}
