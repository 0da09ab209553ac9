package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// CampDefinition holds the organizer-editable fields of a camp
type CampDefinition struct {
	Name        string    `validate:"required,max=200"`
	Description string    `validate:"max=2000"`
	Location    string    `validate:"required,max=200"`
	Date        time.Time `validate:"required"`
	StartTime   string    `validate:"required,datetime=15:04"`
	EndTime     string    `validate:"required,datetime=15:04"`
	MaxDonors   int       `validate:"gte=1,lte=10000"`
}

// CapacitySnapshot is a point-in-time view of a camp's slots
type CapacitySnapshot struct {
	MaxDonors      int
	CurrentDonors  int
	AvailableSlots int
}

// CampListing pairs a camp with donor-specific availability
type CampListing struct {
	Camp           db.Camp
	AvailableSlots int
	Registered     bool
}

// Blackout is a compiled schedule blackout rule
type Blackout struct {
	options rrule.ROption
	Reason  string
}

// CompileBlackouts parses configured blackout rules
func CompileBlackouts(blackouts []config.ScheduleBlackout) ([]Blackout, error) {
	result := make([]Blackout, 0, len(blackouts))
	for i, b := range blackouts {
		rule, err := rrule.StrToRRule(b.RRule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for blackout %d: %w", i, err)
		}
		result = append(result, Blackout{options: rule.OrigOptions, Reason: b.Reason})
	}
	return result, nil
}

// Matches reports whether date is an occurrence of the rule. Rules without a DTSTART
// repeat from a start one year before the checked date.
func (b Blackout) Matches(date time.Time) (bool, error) {
	day := dateOf(date)
	opts := b.options
	if opts.Dtstart.IsZero() {
		opts.Dtstart = day.AddDate(-1, 0, 0)
	}
	rule, err := rrule.NewRRule(opts)
	if err != nil {
		return false, fmt.Errorf("failed to build blackout rule: %w", err)
	}
	for _, occurrence := range rule.Between(day, day.AddDate(0, 0, 1), true) {
		if occurrence.Format(dateLayout) == day.Format(dateLayout) {
			return true, nil
		}
	}
	return false, nil
}

// CampCatalogStore is the store surface used by CampCatalog
type CampCatalogStore interface {
	db.CampStore
	db.UserDirectory
	ListRegistrationsByDonor(ctx context.Context, donorID string) ([]db.Registration, error)
}

// CampCatalog owns camp definitions and read queries over them
type CampCatalog struct {
	store     CampCatalogStore
	blackouts []Blackout
	logger    *zap.Logger
	now       func() time.Time
}

func NewCampCatalog(store CampCatalogStore, blackouts []Blackout, logger *zap.Logger) *CampCatalog {
	return &CampCatalog{
		store:     store,
		blackouts: blackouts,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCamp persists a new camp organised by a verified volunteer
func (c *CampCatalog) CreateCamp(ctx context.Context, def CampDefinition, organizer *model.User) (*db.Camp, error) {
	if !organizer.IsVerifiedVolunteer() {
		return nil, model.NewError(model.KindNotAuthorized, "only verified volunteers can create camps")
	}

	if err := c.checkDefinition(&def); err != nil {
		return nil, err
	}

	now := c.now()
	camp := &db.Camp{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Location:    strings.TrimSpace(def.Location),
		Date:        dateOf(def.Date),
		StartTime:   def.StartTime,
		EndTime:     def.EndTime,
		MaxDonors:   def.MaxDonors,
		OrganizerID: organizer.ID,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.logger.Debug("Creating camp",
		zap.String("id", camp.ID),
		zap.String("name", camp.Name),
		zap.String("date", camp.Date.Format(dateLayout)),
		zap.Int("max_donors", camp.MaxDonors))

	if err := c.store.InsertCamp(ctx, camp); err != nil {
		return nil, fmt.Errorf("failed to insert camp: %w", err)
	}

	c.logger.Info("Camp created", zap.String("camp_id", camp.ID), zap.String("organizer_id", organizer.ID))
	return camp, nil
}

// UpdateCamp replaces the definition of a camp owned by requester
func (c *CampCatalog) UpdateCamp(ctx context.Context, campID string, def CampDefinition, requester *model.User) (*db.Camp, error) {
	camp, err := c.GetCamp(ctx, campID)
	if err != nil {
		return nil, err
	}
	if requester == nil || camp.OrganizerID != requester.ID {
		return nil, model.NewError(model.KindNotOwner, "")
	}

	if err := c.checkDefinition(&def); err != nil {
		return nil, err
	}

	camp.Name = strings.TrimSpace(def.Name)
	camp.Description = strings.TrimSpace(def.Description)
	camp.Location = strings.TrimSpace(def.Location)
	camp.Date = dateOf(def.Date)
	camp.StartTime = def.StartTime
	camp.EndTime = def.EndTime
	camp.MaxDonors = def.MaxDonors
	camp.UpdatedAt = c.now()

	if err := c.store.UpdateCamp(ctx, camp); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, model.NewError(model.KindCampNotFound, "")
		case errors.Is(err, db.ErrCapacityBelowOccupied):
			return nil, model.NewError(model.KindInvalidDefinition,
				"max donors cannot be lower than the number of registered donors")
		}
		return nil, fmt.Errorf("failed to update camp: %w", err)
	}

	c.logger.Info("Camp updated", zap.String("camp_id", camp.ID))
	return camp, nil
}

// DeactivateCamp soft-deletes a camp owned by requester
func (c *CampCatalog) DeactivateCamp(ctx context.Context, campID string, requester *model.User) error {
	camp, err := c.GetCamp(ctx, campID)
	if err != nil {
		return err
	}
	if requester == nil || camp.OrganizerID != requester.ID {
		return model.NewError(model.KindNotOwner, "")
	}

	if err := c.store.SetCampActive(ctx, campID, false); err != nil {
		return fmt.Errorf("failed to deactivate camp: %w", err)
	}

	c.logger.Info("Camp deactivated", zap.String("camp_id", campID))
	return nil
}

// GetCamp returns a camp or a CampNotFound error
func (c *CampCatalog) GetCamp(ctx context.Context, campID string) (*db.Camp, error) {
	camp, err := c.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindCampNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}
	return camp, nil
}

// ListActive returns active camps, newest date first
func (c *CampCatalog) ListActive(ctx context.Context) ([]db.Camp, error) {
	camps, err := c.activeCamps(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(camps, func(i, j int) bool { return camps[i].Date.After(camps[j].Date) })
	return camps, nil
}

// ListUpcoming returns active camps after today, soonest first
func (c *CampCatalog) ListUpcoming(ctx context.Context) ([]db.Camp, error) {
	today := dateOf(c.now())
	camps, err := c.filterActive(ctx, func(camp *db.Camp) bool { return camp.Date.After(today) })
	if err != nil {
		return nil, err
	}
	sortByDateAndStart(camps)
	return camps, nil
}

// ListToday returns today's active camps ordered by start time
func (c *CampCatalog) ListToday(ctx context.Context) ([]db.Camp, error) {
	today := dateOf(c.now())
	camps, err := c.filterActive(ctx, func(camp *db.Camp) bool { return camp.Date.Equal(today) })
	if err != nil {
		return nil, err
	}
	sortByDateAndStart(camps)
	return camps, nil
}

// ListByOrganizer returns every camp organised by organizerID, including inactive ones
func (c *CampCatalog) ListByOrganizer(ctx context.Context, organizerID string) ([]db.Camp, error) {
	camps, err := c.store.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}
	var result []db.Camp
	for _, camp := range camps {
		if camp.OrganizerID == organizerID {
			result = append(result, camp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

// ListAttendanceEligible returns camps whose attendance can be managed, today's camps first
func (c *CampCatalog) ListAttendanceEligible(ctx context.Context) ([]db.Camp, error) {
	today := dateOf(c.now())
	verified := newOrganizerCache(c.store)

	var result []db.Camp
	camps, err := c.filterActive(ctx, func(camp *db.Camp) bool { return !camp.Date.Before(today) })
	if err != nil {
		return nil, err
	}
	for _, camp := range camps {
		ok, err := verified.isVerified(ctx, camp.OrganizerID)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, camp)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		iToday, jToday := result[i].Date.Equal(today), result[j].Date.Equal(today)
		if iToday != jToday {
			return iToday
		}
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

// Search matches active camps by name, location or organizer name. A blank query returns all active camps.
func (c *CampCatalog) Search(ctx context.Context, query string) ([]db.Camp, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.ListActive(ctx)
	}

	organizers := newOrganizerCache(c.store)
	camps, err := c.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var result []db.Camp
	for _, camp := range camps {
		if strings.Contains(strings.ToLower(camp.Name), q) || strings.Contains(strings.ToLower(camp.Location), q) {
			result = append(result, camp)
			continue
		}
		organizer, err := organizers.get(ctx, camp.OrganizerID)
		if err != nil {
			return nil, err
		}
		if organizer != nil && matchesName(organizer, q) {
			result = append(result, camp)
		}
	}
	return result, nil
}

// ListAvailableForDonor returns registrable camps for a verified donor
func (c *CampCatalog) ListAvailableForDonor(ctx context.Context, donor *model.User) ([]CampListing, error) {
	if !donor.IsVerifiedDonor() {
		return nil, model.NewError(model.KindNotEligibleDonor, "")
	}

	regs, err := c.store.ListRegistrationsByDonor(ctx, donor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list donor registrations: %w", err)
	}
	registered := make(map[string]bool)
	for _, r := range regs {
		if r.Status == db.StatusRegistered {
			registered[r.CampID] = true
		}
	}

	camps, err := c.ListAttendanceEligible(ctx)
	if err != nil {
		return nil, err
	}
	sortByDateAndStart(camps)

	listings := make([]CampListing, 0, len(camps))
	for _, camp := range camps {
		listings = append(listings, CampListing{
			Camp:           camp,
			AvailableSlots: camp.AvailableSlots(),
			Registered:     registered[camp.ID],
		})
	}
	return listings, nil
}

// CapacitySnapshot returns the current slot usage of a camp
func (c *CampCatalog) CapacitySnapshot(ctx context.Context, campID string) (*CapacitySnapshot, error) {
	camp, err := c.GetCamp(ctx, campID)
	if err != nil {
		return nil, err
	}
	return &CapacitySnapshot{
		MaxDonors:      camp.MaxDonors,
		CurrentDonors:  camp.CurrentDonors,
		AvailableSlots: camp.AvailableSlots(),
	}, nil
}

// IsEligibleForAttendanceManagement reports whether attendance can be recorded for the camp
func (c *CampCatalog) IsEligibleForAttendanceManagement(ctx context.Context, campID string) (bool, error) {
	camp, err := c.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get camp: %w", err)
	}
	if !camp.Active || camp.Date.Before(dateOf(c.now())) {
		return false, nil
	}
	return newOrganizerCache(c.store).isVerified(ctx, camp.OrganizerID)
}

// CanEdit reports whether user organises the camp
func (c *CampCatalog) CanEdit(ctx context.Context, campID string, user *model.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	camp, err := c.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get camp: %w", err)
	}
	return camp.OrganizerID == user.ID, nil
}

// checkDefinition validates def and rewrites its times in zero-padded HH:MM form
func (c *CampCatalog) checkDefinition(def *CampDefinition) error {
	if err := validate.Struct(def); err != nil {
		return model.NewError(model.KindInvalidDefinition, "invalid camp definition: %v", err)
	}

	date := dateOf(def.Date)
	if date.Before(dateOf(c.now())) {
		return model.NewError(model.KindInvalidSchedule, "camp date cannot be in the past")
	}
	start, err := parseClock(def.StartTime)
	if err != nil {
		return model.NewError(model.KindInvalidDefinition, "invalid start time: %v", err)
	}
	end, err := parseClock(def.EndTime)
	if err != nil {
		return model.NewError(model.KindInvalidDefinition, "invalid end time: %v", err)
	}
	if start.After(end) {
		return model.NewError(model.KindInvalidSchedule, "start time must not be after end time")
	}
	def.StartTime = start.Format(clockLayout)
	def.EndTime = end.Format(clockLayout)

	for _, b := range c.blackouts {
		blocked, err := b.Matches(date)
		if err != nil {
			return err
		}
		if blocked {
			return model.NewError(model.KindInvalidSchedule, "camps cannot be scheduled on %s: %s",
				date.Format(dateLayout), b.Reason)
		}
	}
	return nil
}

func (c *CampCatalog) activeCamps(ctx context.Context) ([]db.Camp, error) {
	return c.filterActive(ctx, func(*db.Camp) bool { return true })
}

func (c *CampCatalog) filterActive(ctx context.Context, keep func(*db.Camp) bool) ([]db.Camp, error) {
	camps, err := c.store.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}
	var result []db.Camp
	for i := range camps {
		if camps[i].Active && keep(&camps[i]) {
			result = append(result, camps[i])
		}
	}
	return result, nil
}

func sortByDateAndStart(camps []db.Camp) {
	sort.SliceStable(camps, func(i, j int) bool {
		if !camps[i].Date.Equal(camps[j].Date) {
			return camps[i].Date.Before(camps[j].Date)
		}
		return clockBefore(camps[i].StartTime, camps[j].StartTime)
	})
}

func matchesName(u *model.User, q string) bool {
	return strings.Contains(strings.ToLower(u.FirstName), q) ||
		strings.Contains(strings.ToLower(u.LastName), q) ||
		strings.Contains(strings.ToLower(u.FullName()), q)
}

// organizerCache memoises directory lookups for the duration of one call
type organizerCache struct {
	dir   db.UserDirectory
	users map[string]*model.User
}

func newOrganizerCache(dir db.UserDirectory) *organizerCache {
	return &organizerCache{dir: dir, users: make(map[string]*model.User)}
}

// get returns nil for unknown users
func (oc *organizerCache) get(ctx context.Context, userID string) (*model.User, error) {
	if u, ok := oc.users[userID]; ok {
		return u, nil
	}
	u, err := oc.dir.GetUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		u, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	oc.users[userID] = u
	return u, nil
}

func (oc *organizerCache) isVerified(ctx context.Context, userID string) (bool, error) {
	u, err := oc.get(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsVerifiedVolunteer(), nil
}
