package ring

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Hash algorithm names carried in placement data.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmMD5    = "md5"
)

// Location is the placement of a routing key: the virtual node its hash
// falls into, the physical metadata node that vnode currently maps to,
// and any opaque per-vnode data the placement service attached.
type Location struct {
	PNode string `json:"pnode"`
	VNode uint64 `json:"vnode"`
	Data  string `json:"data,omitempty"`
}

// Node is one {vnode, pnode} pair from the ring.
type Node struct {
	VNode uint64
	PNode string
}

// Snapshot is an immutable, versioned view of the placement ring. A
// request captures the snapshot once at entry and uses it throughout, so
// every lookup within the request observes the same topology.
type Snapshot struct {
	version      string
	algorithm    string
	interval     uint64
	vnodeToPnode map[uint64]string
	vnodeData    map[uint64]string
	pnodes       []string // unique, sorted
	nodes        []Node   // sorted by vnode
}

// wireSnapshot is the JSON shape published by the placement service and
// stored in the cache.
type wireSnapshot struct {
	Version           string            `json:"version"`
	Algorithm         string            `json:"algorithm"`
	VnodeHashInterval uint64            `json:"vnode_hash_interval"`
	VnodeToPnode      map[string]string `json:"vnode_to_pnode"`
	VnodeData         map[string]string `json:"vnode_data,omitempty"`
}

// Parse builds a Snapshot from placement-service JSON.
func Parse(data []byte) (*Snapshot, error) {
	var wire wireSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse placement data: %w", err)
	}
	return fromWire(&wire)
}

func fromWire(wire *wireSnapshot) (*Snapshot, error) {
	switch wire.Algorithm {
	case AlgorithmSHA256, AlgorithmMD5:
	case "":
		return nil, fmt.Errorf("placement data has no hash algorithm")
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", wire.Algorithm)
	}
	if wire.VnodeHashInterval == 0 {
		return nil, fmt.Errorf("placement data has no vnode hash interval")
	}
	if len(wire.VnodeToPnode) == 0 {
		return nil, fmt.Errorf("placement data maps no vnodes")
	}

	s := &Snapshot{
		version:      wire.Version,
		algorithm:    wire.Algorithm,
		interval:     wire.VnodeHashInterval,
		vnodeToPnode: make(map[uint64]string, len(wire.VnodeToPnode)),
		vnodeData:    make(map[uint64]string, len(wire.VnodeData)),
	}
	seen := make(map[string]bool)
	for vs, pnode := range wire.VnodeToPnode {
		vnode, err := strconv.ParseUint(vs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vnode %q: %w", vs, err)
		}
		s.vnodeToPnode[vnode] = pnode
		s.nodes = append(s.nodes, Node{VNode: vnode, PNode: pnode})
		if !seen[pnode] {
			seen[pnode] = true
			s.pnodes = append(s.pnodes, pnode)
		}
	}
	for vs, data := range wire.VnodeData {
		vnode, err := strconv.ParseUint(vs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vnode %q: %w", vs, err)
		}
		s.vnodeData[vnode] = data
	}
	sort.Slice(s.nodes, func(i, j int) bool { return s.nodes[i].VNode < s.nodes[j].VNode })
	sort.Strings(s.pnodes)
	return s, nil
}

// Version returns the snapshot's placement version.
func (s *Snapshot) Version() string {
	return s.version
}

// Locate hashes a routing key to its vnode and looks up the owning pnode.
func (s *Snapshot) Locate(key string) (Location, error) {
	var digest []byte
	switch s.algorithm {
	case AlgorithmMD5:
		sum := md5.Sum([]byte(key))
		digest = sum[:]
	default:
		sum := sha256.Sum256([]byte(key))
		digest = sum[:]
	}

	h := binary.BigEndian.Uint64(digest[:8])
	vnode := h / s.interval
	pnode, ok := s.vnodeToPnode[vnode]
	if !ok {
		return Location{}, fmt.Errorf("vnode %d has no pnode in placement version %s", vnode, s.version)
	}
	return Location{PNode: pnode, VNode: vnode, Data: s.vnodeData[vnode]}, nil
}

// AllNodes returns every {vnode, pnode} pair, sorted by vnode.
func (s *Snapshot) AllNodes() []Node {
	return s.nodes
}

// Pnodes returns the unique physical nodes in the ring, sorted.
func (s *Snapshot) Pnodes() []string {
	return s.pnodes
}
