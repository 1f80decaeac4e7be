// Package config loads the cluster address table described in spec §6.1:
// a flat JSON array of node addresses, shared verbatim by every node in
// the cluster. Grounded on the teacher's plain encoding/json config
// reading in cmd/server/main.go — a flat, small config shape does not
// warrant pulling in a layered config library (viper/koanf) from the
// example pack; see DESIGN.md.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// NodeAddr is one entry in the cluster configuration.
type NodeAddr struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Cluster is the parsed configuration: every node's address, in index
// order. Index i's address is Nodes[i].
type Cluster struct {
	Nodes []NodeAddr
}

// Load reads and validates the cluster configuration at path.
func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var nodes []NodeAddr
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("config: %s declares no nodes", path)
	}

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.IP == "" || n.Port <= 0 {
			return nil, fmt.Errorf("config: invalid address %+v", n)
		}
		key := fmt.Sprintf("%s:%d", n.IP, n.Port)
		if seen[key] {
			return nil, fmt.Errorf("config: duplicate address %s", key)
		}
		seen[key] = true
	}

	return &Cluster{Nodes: nodes}, nil
}

// ValidateIndex checks that index is a valid position within the cluster.
func (c *Cluster) ValidateIndex(index int) error {
	if index < 0 || index >= len(c.Nodes) {
		return fmt.Errorf("config: index %d out of range for %d nodes", index, len(c.Nodes))
	}
	return nil
}

// Peers returns every node index other than self.
func (c *Cluster) Peers(self int) []int {
	peers := make([]int, 0, len(c.Nodes)-1)
	for i := range c.Nodes {
		if i != self {
			peers = append(peers, i)
		}
	}
	return peers
}
