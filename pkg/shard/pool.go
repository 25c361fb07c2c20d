package shard

import (
	"fmt"
)

// Pool holds one long-lived client per physical metadata node. It is
// built once at startup from the pnodes present in the ring; hot-path
// lookups are a map read, and no client is created per request.
type Pool struct {
	clients map[string]*Client
}

// NewPool creates clients for every pnode.
func NewPool(pnodes []string) *Pool {
	clients := make(map[string]*Client, len(pnodes))
	for _, pnode := range pnodes {
		clients[pnode] = NewClient(pnode)
	}
	return &Pool{clients: clients}
}

// Get returns the client for a pnode.
func (p *Pool) Get(pnode string) (*Client, error) {
	client, ok := p.clients[pnode]
	if !ok {
		return nil, fmt.Errorf("no client for metadata node %q", pnode)
	}
	return client, nil
}

// Size returns the number of clients in the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}
