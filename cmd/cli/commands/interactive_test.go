package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/blood-camps/pkg/core/services"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{"plain", "register camp-1", []string{"register", "camp-1"}, false},
		{"double quotes", `createCamp --name "Town Hall Drive" --max 20`, []string{"createCamp", "--name", "Town Hall Drive", "--max", "20"}, false},
		{"single quotes", `markDonation c1 d1 --notes 'felt faint, ok'`, []string{"markDonation", "c1", "d1", "--notes", "felt faint, ok"}, false},
		{"empty quotes", `updateCamp c1 --description ""`, []string{"updateCamp", "c1", "--description", ""}, false},
		{"extra spaces", "  summary   ", []string{"summary"}, false},
		{"blank", "", nil, false},
		{"unclosed", `createCamp --name "Town`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommandLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunLine(t *testing.T) {
	app, store := newTestApp(t)
	campID := createTestCamp(t, app, store, time.Now().AddDate(0, 0, 7), "3")
	app.ActorID = ""

	root := &cobra.Command{Use: "cli"}
	interactive := InteractiveCmd(app)
	root.AddCommand(RegisterCmd(app), ListCampsCmd(app), ServeCmd(app), interactive)
	commands := siblingCommands(interactive)

	assert.Contains(t, commands, "register")
	assert.NotContains(t, commands, "serve")
	assert.NotContains(t, commands, "interactive")

	var out bytes.Buffer
	assert.False(t, runLine(app, commands, "as donor-1", &out))
	assert.Equal(t, "donor-1", app.ActorID)

	assert.False(t, runLine(app, commands, "register "+campID, &out))
	assert.Contains(t, out.String(), "Registered for camp "+campID)

	out.Reset()
	assert.False(t, runLine(app, commands, "listCamps --today --upcoming", &out))
	assert.Contains(t, out.String(), "❌ Error")

	// Flags are reset between runs
	out.Reset()
	assert.False(t, runLine(app, commands, "listCamps", &out))
	assert.Contains(t, out.String(), "Town Hall Drive")

	out.Reset()
	assert.False(t, runLine(app, commands, "register", &out))
	assert.Contains(t, out.String(), "accepts 1 arg")

	out.Reset()
	assert.False(t, runLine(app, commands, "defineRota 4", &out))
	assert.Contains(t, out.String(), "Unknown command: defineRota")

	out.Reset()
	assert.False(t, runLine(app, commands, "help", &out))
	help := out.String()
	assert.Less(t, strings.Index(help, "listCamps"), strings.Index(help, "register <camp_id>"))

	assert.True(t, runLine(app, commands, "quit", &out))
}

func TestApplyDefinitionFlags(t *testing.T) {
	base := services.CampDefinition{
		Name:      "Library Drive",
		Location:  "Library",
		Date:      time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "14:00",
		MaxDonors: 10,
	}

	cmd := &cobra.Command{Use: "test"}
	campDefinitionFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--date", "2026-11-08", "--max", "25", "--name", "  Library Drive II "}))

	def, err := applyDefinitionFlags(cmd.Flags(), base)
	require.NoError(t, err)
	assert.Equal(t, "Library Drive II", def.Name)
	assert.Equal(t, time.Date(2026, 11, 8, 0, 0, 0, 0, time.UTC), def.Date)
	assert.Equal(t, 25, def.MaxDonors)
	assert.Equal(t, "Library", def.Location)
	assert.Equal(t, "09:00", def.StartTime)

	cmd = &cobra.Command{Use: "test"}
	campDefinitionFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--date", "tomorrow"}))
	_, err = applyDefinitionFlags(cmd.Flags(), base)
	assert.ErrorContains(t, err, "date must be YYYY-MM-DD")
}
