package team

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	seatsSheet    = "Seats"
	learningSheet = "Learning"
)

// ExportSnapshot writes the snapshot as an xlsx workbook with a "Seats" and a "Learning" sheet.
func ExportSnapshot(snap AnalyticsSnapshot, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", seatsSheet); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}
	seatRows := [][]interface{}{
		{"Snapshot at", snap.SnapshotAt.Format("2006-01-02 15:04:05 MST")},
		{"Total seats", snap.SeatUsage.TotalSeats},
		{"Used seats", snap.SeatUsage.UsedSeats},
		{"Pending invites", snap.SeatUsage.PendingInvites},
	}
	if err := writeRows(f, seatsSheet, seatRows); err != nil {
		return err
	}

	if _, err := f.NewSheet(learningSheet); err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	learningRows := make([][]interface{}, 0, len(snap.LearningProgress)+1)
	learningRows = append(learningRows, []interface{}{"User ID", "Email", "Completed", "Total", "Percent"})
	for _, mp := range snap.LearningProgress {
		learningRows = append(learningRows, []interface{}{mp.UserID, mp.Email, mp.Completed, mp.Total, mp.Percent})
	}
	if err := writeRows(f, learningSheet, learningRows); err != nil {
		return err
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "computing cell name")
		}
		row := row
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing %s row %d", sheet, i+1)
		}
	}
	return nil
}
