package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const snapshotContentType = "application/json"

// SnapshotArchive stores JSON audit records of generation runs.
type SnapshotArchive struct {
	uploader FileUploader
	now      func() time.Time
}

func NewSnapshotArchive(uploader FileUploader) *SnapshotArchive {
	return &SnapshotArchive{uploader: uploader, now: time.Now}
}

// DivisionSnapshotKey names one classification run of a tournament. Runs
// sort by time within the tournament prefix.
func DivisionSnapshotKey(tournamentID int, at time.Time, run uuid.UUID) string {
	return "divisions/" + strconv.Itoa(tournamentID) + "/" + at.UTC().Format("20060102T150405Z") + "-" + run.String() + ".json"
}

func BracketSnapshotKey(divisionID int, token uuid.UUID) string {
	return "brackets/" + strconv.Itoa(divisionID) + "/" + token.String() + ".json"
}

func (a *SnapshotArchive) SaveDivisions(ctx context.Context, tournamentID int, snapshot interface{}) (*UploadResult, error) {
	return a.put(ctx, DivisionSnapshotKey(tournamentID, a.now(), uuid.New()), snapshot)
}

func (a *SnapshotArchive) SaveBracket(ctx context.Context, divisionID int, token uuid.UUID, snapshot interface{}) (*UploadResult, error) {
	return a.put(ctx, BracketSnapshotKey(divisionID, token), snapshot)
}

func (a *SnapshotArchive) put(ctx context.Context, key string, snapshot interface{}) (*UploadResult, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}
	return a.uploader.Upload(ctx, key, snapshotContentType, bytes.NewReader(body))
}
