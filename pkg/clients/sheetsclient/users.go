package sheetsclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/blood-camps/pkg/core/model"
)

// Expected column names in the roster sheet
var rosterFields = []string{
	"Unique ID",
	"First name",
	"Last name",
	"Email",
	"Role",
	"Verified by",
	"Verified at",
	"Volunteer verified by",
	"Volunteer verified at",
}

var verifiedAtLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02", "02/01/2006"}

// ListUsers retrieves and parses the user roster. Rows with an unrecognised role are
// returned with the raw role so callers can report them.
func (c *Client) ListUsers(sheetID, tab string) ([]model.User, error) {
	values, err := c.GetValues(sheetID, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster data: %w", err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	users, err := parseUsers(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	return users, nil
}

// parseUsers converts raw spreadsheet data into users
func parseUsers(raw [][]interface{}) ([]model.User, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("no header row found")
	}

	fieldIndexes := make(map[string]int)
	for _, field := range rosterFields {
		index := -1
		for i, cell := range raw[0] {
			if cellStr, ok := cell.(string); ok && strings.TrimSpace(cellStr) == field {
				index = i
				break
			}
		}
		if index == -1 {
			return nil, fmt.Errorf("missing required field in header: %s", field)
		}
		fieldIndexes[field] = index
	}

	getField := func(field string, row []interface{}) string {
		index := fieldIndexes[field]
		if index >= len(row) {
			return ""
		}
		if str, ok := row[index].(string); ok {
			return strings.TrimSpace(str)
		}
		return ""
	}

	users := make([]model.User, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]

		// Fully blank rows are spacing, not entries
		if isBlank(row) {
			continue
		}

		rawRole := getField("Role", row)
		role, ok := model.ParseRole(rawRole)
		if !ok {
			role = model.Role(rawRole)
		}

		verification, err := parseVerification(getField("Verified by", row), getField("Verified at", row))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		volunteerVerification, err := parseVerification(getField("Volunteer verified by", row), getField("Volunteer verified at", row))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		users = append(users, model.User{
			ID:                    getField("Unique ID", row),
			FirstName:             getField("First name", row),
			LastName:              getField("Last name", row),
			Email:                 getField("Email", row),
			Role:                  role,
			Verification:          verification,
			VolunteerVerification: volunteerVerification,
		})
	}

	return users, nil
}

// parseVerification returns nil when the account has no verification date
func parseVerification(by, at string) (*model.VerificationRecord, error) {
	if at == "" {
		return nil, nil
	}
	for _, layout := range verifiedAtLayouts {
		if t, err := time.Parse(layout, at); err == nil {
			return &model.VerificationRecord{By: by, At: t}, nil
		}
	}
	return nil, fmt.Errorf("invalid verification date %q", at)
}

func isBlank(row []interface{}) bool {
	for _, cell := range row {
		if s, ok := cell.(string); ok && strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
