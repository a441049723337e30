package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/timmy/jobalerts/internal/domain"
)

const snapshotPrefix = "snapshots"

// Snapshot is the raw result of one fetch, kept for audits and parser fixes.
type Snapshot struct {
	CycleID   string          `json:"cycle_id"`
	Region    string          `json:"region"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	Jobs      []domain.RawJob `json:"jobs"`
}

// SnapshotArchiver writes fetch snapshots as JSON objects.
type SnapshotArchiver struct {
	store ObjectStorage
}

// NewSnapshotArchiver creates an archiver over store.
func NewSnapshotArchiver(store ObjectStorage) *SnapshotArchiver {
	return &SnapshotArchiver{store: store}
}

// SnapshotKey returns snapshots/{region}/{yyyy}/{mm}/{dd}/{cycleID}.json.
func SnapshotKey(region, cycleID string, at time.Time) string {
	return path.Join(dayPrefix(region, at), cycleID+".json")
}

func dayPrefix(region string, at time.Time) string {
	at = at.UTC()
	return path.Join(snapshotPrefix, region, at.Format("2006"), at.Format("01"), at.Format("02"))
}

// Archive uploads snap and returns its key.
func (a *SnapshotArchiver) Archive(ctx context.Context, snap Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := SnapshotKey(snap.Region, snap.CycleID, snap.FetchedAt)
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// Load reads the snapshot stored at key.
func (a *SnapshotArchiver) Load(ctx context.Context, key string) (*Snapshot, error) {
	body, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var snap Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// ListDay returns the snapshot keys for region on the UTC day of at, oldest first.
func (a *SnapshotArchiver) ListDay(ctx context.Context, region string, at time.Time) ([]string, error) {
	keys, err := a.store.List(ctx, dayPrefix(region, at)+"/")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
