package inventory

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// BarcodeGenerator issues unique product barcodes of the form "P<id>".
type BarcodeGenerator struct {
	node *snowflake.Node
}

// NewBarcodeGenerator returns a generator for the given node id (0-1023).
// Processes sharing a database must use distinct node ids.
func NewBarcodeGenerator(nodeID int64) (*BarcodeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("barcode node %d: %w", nodeID, err)
	}
	return &BarcodeGenerator{node: node}, nil
}

func (g *BarcodeGenerator) Next() string {
	return "P" + g.node.Generate().String()
}
