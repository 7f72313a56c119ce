package pgx

import (
	"context"
	"errors"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/fablekit/worldgraph/pkg/common"
)

const getSyncStatusSQL = `
SELECT world_id, last_full_sync, last_incremental_sync, node_count, edge_count, sync_in_progress, coalesce(last_error, '')
FROM world_sync_status
WHERE world_id = $1;
`

// GetSyncStatus fetches the per-world sync record. Returns (nil, nil) for a
// world that has never been synced.
func (s *GraphDBStorage) GetSyncStatus(ctx context.Context, worldID string) (*common.SyncStatus, error) {
	var status common.SyncStatus
	err := s.conn.QueryRow(ctx, getSyncStatusSQL, worldID).Scan(
		&status.WorldID,
		&status.LastFullSync,
		&status.LastIncrementalSync,
		&status.NodeCount,
		&status.EdgeCount,
		&status.InProgress,
		&status.LastError,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

const saveSyncStatusSQL = `
INSERT INTO world_sync_status
    (world_id, last_full_sync, last_incremental_sync, node_count, edge_count, sync_in_progress, last_error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, nullif($7, ''), now())
ON CONFLICT (world_id) DO UPDATE
SET last_full_sync        = EXCLUDED.last_full_sync,
    last_incremental_sync = EXCLUDED.last_incremental_sync,
    node_count            = EXCLUDED.node_count,
    edge_count            = EXCLUDED.edge_count,
    sync_in_progress      = EXCLUDED.sync_in_progress,
    last_error            = EXCLUDED.last_error,
    updated_at            = now();
`

// SaveSyncStatus upserts the per-world sync record. The record is created
// lazily on the first sync attempt and never deleted while the world exists.
func (s *GraphDBStorage) SaveSyncStatus(ctx context.Context, status *common.SyncStatus) error {
	_, err := s.conn.Exec(ctx, saveSyncStatusSQL,
		status.WorldID,
		status.LastFullSync,
		status.LastIncrementalSync,
		status.NodeCount,
		status.EdgeCount,
		status.InProgress,
		status.LastError,
	)
	return err
}
