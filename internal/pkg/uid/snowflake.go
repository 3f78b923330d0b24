package uid

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates time-ordered 63-bit IDs.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake builds a generator on a random node number.
func NewSnowflake() (*Snowflake, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}

	maxNode := int64(-1 ^ (-1 << snowflake.NodeBits))
	node, err := snowflake.NewNode(int64(binary.BigEndian.Uint16(b[:])) & maxNode)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns the next ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
