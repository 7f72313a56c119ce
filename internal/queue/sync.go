package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/fablekit/worldgraph/pkg/ai"
	"github.com/fablekit/worldgraph/pkg/graph"
	"github.com/fablekit/worldgraph/pkg/leaselock"
	"github.com/fablekit/worldgraph/pkg/logger"
	sourcepgx "github.com/fablekit/worldgraph/pkg/source/pgx"
	storepgx "github.com/fablekit/worldgraph/pkg/store/pgx"
)

// SyncMsg is the payload of a graph_sync_queue message.
type SyncMsg struct {
	WorldID     string `json:"world_id"`
	FullRebuild bool   `json:"full_rebuild"`
}

// PublishSyncRequest enqueues a sync request for a world. The surrounding
// application calls this whenever world content changes or a rebuild is
// requested explicitly.
func PublishSyncRequest(ch *amqp091.Channel, worldID string, fullRebuild bool) error {
	body, err := json.Marshal(SyncMsg{WorldID: worldID, FullRebuild: fullRebuild})
	if err != nil {
		return err
	}
	return PublishFIFO(ch, SyncQueue, body)
}

// ProcessSyncMessage handles one sync request: it wires an engine over the
// shared pool and client and runs the sync. A "skipped" result (another
// sync already in flight for the world) acks the message; only fatal sync
// errors propagate so the message goes through the retry queue.
func ProcessSyncMessage(
	ctx context.Context,
	aiClient ai.GraphAIClient,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(SyncMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid sync message: %w", err)
	}
	if data.WorldID == "" {
		return fmt.Errorf("sync message missing world_id")
	}

	engine, err := graph.NewEngine(graph.NewEngineParams{
		Store:    storepgx.NewGraphDBStorage(conn),
		Reader:   sourcepgx.NewEntityReader(conn),
		AIClient: aiClient,
		Locks:    graph.NewLeaseLocker(leaselock.New(conn), 0),
	})
	if err != nil {
		return err
	}

	res, err := engine.SyncWorldGraph(ctx, data.WorldID, data.FullRebuild)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Sync finished",
		"world_id", data.WorldID,
		"status", res.Status,
		"nodes_created", res.NodesCreated,
		"nodes_updated", res.NodesUpdated,
		"edges_created", res.EdgesCreated,
		"errors", len(res.Errors),
	)
	return nil
}
