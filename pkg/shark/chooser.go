package shark

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/burrowlabs/burrow/pkg/types"
)

// ErrNotEnoughSpace reports that no storage node can hold a body of the
// requested size.
var ErrNotEnoughSpace = errors.New("not enough free space on any storage node")

// ChooseRequest asks for candidate storage-node sets for one write.
type ChooseRequest struct {
	// Replicas is the object's durability level: every returned set has
	// exactly this many nodes.
	Replicas int

	// Size is the expected body size in bytes (0 when unknown).
	Size int64
}

// Chooser selects candidate storage-node sets. The first set is the
// preferred placement; later sets are failover alternatives tried in
// order when a set cannot be fully established. Production wires this to
// the storage-node inventory service.
type Chooser interface {
	Choose(ctx context.Context, req ChooseRequest) ([][]types.Shark, error)
}

// InventoryChooser picks candidate sets from a static inventory,
// spreading each set across datacenters where the inventory allows.
type InventoryChooser struct {
	mu        sync.Mutex
	rng       *rand.Rand
	inventory []types.Shark
	capacity  int64 // free bytes per node; 0 means unlimited
}

// NewInventoryChooser creates a chooser over a fixed set of storage
// nodes. capacity bounds the body size any node accepts; 0 disables the
// check.
func NewInventoryChooser(inventory []types.Shark, capacity, seed int64) *InventoryChooser {
	return &InventoryChooser{
		inventory: inventory,
		capacity:  capacity,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Choose shuffles the inventory and slices it into disjoint sets of the
// requested size. Within one shuffle no node appears in two sets, so a
// failover set never retries a node from an abandoned set.
func (c *InventoryChooser) Choose(_ context.Context, req ChooseRequest) ([][]types.Shark, error) {
	if req.Replicas <= 0 {
		return nil, fmt.Errorf("invalid replica count %d", req.Replicas)
	}
	if len(c.inventory) < req.Replicas {
		return nil, fmt.Errorf("inventory has %d storage nodes, need %d", len(c.inventory), req.Replicas)
	}
	if c.capacity > 0 && req.Size > c.capacity {
		return nil, ErrNotEnoughSpace
	}

	c.mu.Lock()
	shuffled := make([]types.Shark, len(c.inventory))
	copy(shuffled, c.inventory)
	c.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	c.mu.Unlock()

	var sets [][]types.Shark
	for i := 0; i+req.Replicas <= len(shuffled); i += req.Replicas {
		set := make([]types.Shark, req.Replicas)
		copy(set, shuffled[i:i+req.Replicas])
		sort.SliceStable(set, func(a, b int) bool {
			return set[a].Datacenter < set[b].Datacenter
		})
		sets = append(sets, set)
	}
	return sets, nil
}
