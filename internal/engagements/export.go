package engagements

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var exportHeader = []string{"id", "type", "timestamp", "user_id", "engagement_score", "source"}

// WriteCSV renders records with the same column names the upload endpoint accepts.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			string(r.Type),
			r.Timestamp.UTC().Format(time.RFC3339),
			r.UserID,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			string(r.Source),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
