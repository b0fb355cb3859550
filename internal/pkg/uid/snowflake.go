package uid

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates Twitter-style snowflake ids.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake returns a generator on a random node in [0, 1023]. Replicas
// that need collision-free ids should use NewSnowflakeNode with distinct
// node numbers.
func NewSnowflake() (*Snowflake, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<snowflake.NodeBits))
	if err != nil {
		return nil, fmt.Errorf("uid: pick snowflake node: %w", err)
	}

	return NewSnowflakeNode(n.Int64())
}

// NewSnowflakeNode returns a generator bound to node.
func NewSnowflakeNode(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("uid: snowflake node %d: %w", node, err)
	}

	return &Snowflake{node: n}, nil
}

// Generate returns the next id.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
