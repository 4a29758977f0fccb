package allocator

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator produces the int64 surrogate keys used for urls.id. A
// snowflake node is used instead of relying on DB auto-increment so the
// key stays distributed-safe if PS is ever fronted by multiple writers
// (spec_full §3 "storage notes").
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator builds an IDGenerator from a datacenter/worker pair,
// combined the same way the teacher's snowflake setup does: 5 bits each,
// packed into snowflake's single node ID space.
func NewIDGenerator(datacenterID, workerID int64) (*IDGenerator, error) {
	nodeID := (datacenterID << 5) | workerID
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("allocator: failed to initialize snowflake node: %w", err)
	}
	return &IDGenerator{node: node}, nil
}

// NextID returns a new distributed-safe int64 identifier.
func (g *IDGenerator) NextID() int64 {
	return g.node.Generate().Int64()
}
