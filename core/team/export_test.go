package team

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportSnapshot(t *testing.T) {
	snap := AnalyticsSnapshot{
		ID:             "snap",
		OrganizationID: "org",
		SnapshotAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		SeatUsage:      SeatUsage{TotalSeats: 10, UsedSeats: 3, PendingInvites: 2},
		LearningProgress: []MemberProgress{
			{UserID: "u1", Email: "u1@test.test", Completed: 1, Total: 3, Percent: 33},
			{UserID: "u2", Email: "u2@test.test"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportSnapshot(snap, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{seatsSheet, learningSheet}, f.GetSheetList())

	total, err := f.GetCellValue(seatsSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "10", total)

	rows, err := f.GetRows(learningSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"User ID", "Email", "Completed", "Total", "Percent"}, rows[0])
	assert.Equal(t, []string{"u1", "u1@test.test", "1", "3", "33"}, rows[1])
}
