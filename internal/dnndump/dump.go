// Package dnndump serializes a lowered runtime graph to CBOR, the
// same wire format the teacher's cmd/fletcher server speaks over HTTP
// (github.com/fxamacker/cbor/v2), repurposed here for a one-shot
// structural dump instead of a request/response body.
package dnndump

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/lensframe/dnncore/internal/rtgraph"
)

// GraphDump is the serializable shape of a lowered graph: one entry
// per placed layer, in insertion order, mirroring rtgraph.NodeInfo.
type GraphDump struct {
	Nodes []NodeDump `cbor:"nodes"`
}

// NodeDump is one layer's CBOR-friendly projection of rtgraph.NodeInfo.
type NodeDump struct {
	ID           int       `cbor:"id"`
	TypeName     string    `cbor:"type"`
	Name         string    `cbor:"name"`
	Inputs       []PinDump `cbor:"inputs"`
	OutputShapes [][]int   `cbor:"output_shapes,omitempty"`
}

// PinDump mirrors rtgraph.Pin.
type PinDump struct {
	SrcID  int `cbor:"src_id"`
	SrcOut int `cbor:"src_out"`
}

// FromNet snapshots net's current structure into a GraphDump.
func FromNet(net *rtgraph.Net) GraphDump {
	infos := net.Describe()
	dump := GraphDump{Nodes: make([]NodeDump, len(infos))}
	for i, info := range infos {
		pins := make([]PinDump, len(info.Inputs))
		for j, p := range info.Inputs {
			pins[j] = PinDump{SrcID: p.SrcID, SrcOut: p.SrcOut}
		}
		dump.Nodes[i] = NodeDump{
			ID:           info.ID,
			TypeName:     info.TypeName,
			Name:         info.Name,
			Inputs:       pins,
			OutputShapes: info.OutputShapes,
		}
	}
	return dump
}

// Write CBOR-encodes net's structure to w.
func Write(w io.Writer, net *rtgraph.Net) error {
	return cbor.NewEncoder(w).Encode(FromNet(net))
}

// Read decodes a GraphDump previously written by Write.
func Read(r io.Reader) (GraphDump, error) {
	var dump GraphDump
	err := cbor.NewDecoder(r).Decode(&dump)
	return dump, err
}
