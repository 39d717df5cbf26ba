// Package dataset defines the output-side domain model: attributed graphs,
// proton-transfer reaction samples, and the assembled dataset artifact.
package dataset

// AttributedGraph is a machine-learning-ready molecular graph: per-node and
// per-edge one-hot feature vectors plus an edge index listing every bond in
// both directions.
type AttributedGraph struct {
	// NodeFeatures holds one feature vector per atom, all of equal width.
	NodeFeatures [][]float32 `json:"node_features"`

	// EdgeIndex is a 2 x (2*numBonds) adjacency list: EdgeIndex[0][k] and
	// EdgeIndex[1][k] are the endpoints of directed edge k.  Each bond
	// appears once per direction, with the reverse edge immediately
	// following the forward one.
	EdgeIndex [2][]int32 `json:"edge_index"`

	// EdgeFeatures holds one feature vector per directed edge, aligned
	// with EdgeIndex columns.  Both directions of a bond share identical
	// features.
	EdgeFeatures [][]float32 `json:"edge_features"`

	// Charge is the net formal charge of the structure.
	Charge int `json:"charge"`
}

// NumNodes returns the atom count of the encoded graph.
func (g *AttributedGraph) NumNodes() int { return len(g.NodeFeatures) }

// NumEdges returns the directed edge count (twice the bond count).
func (g *AttributedGraph) NumEdges() int { return len(g.EdgeIndex[0]) }

// ReactionSample is one training example: the protonated and deprotonated
// graphs of a single proton-transfer reaction, the pKa label, and the
// provenance needed to trace the sample back to its input record.
type ReactionSample struct {
	Protonated   *AttributedGraph `json:"protonated"`
	Deprotonated *AttributedGraph `json:"deprotonated"`

	PKa     float64 `json:"pka"`
	PKaType string  `json:"pka_type,omitempty"`

	// SourceID and SiteID identify the originating record and site.
	SourceID string `json:"source_id"`
	SiteID   int    `json:"site_id"`

	// CanonicalKey is the parent molecule's structural identity.
	CanonicalKey string `json:"canonical_key"`

	// Correspondence maps protonated-graph node index -> deprotonated-graph
	// node index; the transferred hydrogen maps to -1.
	Correspondence []int `json:"correspondence"`

	// SiteAtom is the reaction-center node index, valid in both graphs.
	SiteAtom int `json:"site_atom"`
}
