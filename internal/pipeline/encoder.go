package pipeline

import (
	"fmt"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Encoder turns normalized pairs into attributed-graph reaction samples
// using one fixed vocabulary.  Encoders are stateless after construction and
// safe for concurrent use.
type Encoder struct {
	vocab  *Vocabulary
	logger logging.Logger
}

// NewEncoder returns an encoder for the given vocabulary version.
func NewEncoder(vocabVersion string, logger logging.Logger) (*Encoder, error) {
	vocab, err := VocabularyFor(vocabVersion)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Encoder{vocab: vocab, logger: logger.Named("encoder")}, nil
}

// Vocabulary returns the encoder's vocabulary.
func (e *Encoder) Vocabulary() *Vocabulary { return e.vocab }

// Encode produces the reaction sample for one normalized pair.  Any
// out-of-vocabulary attribute on either side rejects the whole pair.
func (e *Encoder) Encode(p *Pair) (*dataset.ReactionSample, error) {
	prot, err := e.EncodeStructure(p.Protonated)
	if err != nil {
		return nil, errors.Encoding("protonated structure failed to encode").
			WithDetail(fmt.Sprintf("source=%s site=%d", p.SourceID, p.SiteID)).
			WithCause(err)
	}
	deprot, err := e.EncodeStructure(p.Deprotonated)
	if err != nil {
		return nil, errors.Encoding("deprotonated structure failed to encode").
			WithDetail(fmt.Sprintf("source=%s site=%d", p.SourceID, p.SiteID)).
			WithCause(err)
	}
	return &dataset.ReactionSample{
		Protonated:     prot,
		Deprotonated:   deprot,
		PKa:            p.PKa,
		PKaType:        string(p.Type),
		SourceID:       p.SourceID,
		SiteID:         p.SiteID,
		CanonicalKey:   p.CanonicalKey,
		Correspondence: p.Correspondence,
		SiteAtom:       p.SiteAtom,
	}, nil
}

// EncodeStructure encodes a single structure into an attributed graph.  Each
// bond contributes a forward and a reverse directed edge with identical
// features, the reverse immediately following the forward.
func (e *Encoder) EncodeStructure(s *chem.Structure) (*dataset.AttributedGraph, error) {
	g := &dataset.AttributedGraph{
		NodeFeatures: make([][]float32, 0, s.NumAtoms()),
		EdgeFeatures: make([][]float32, 0, 2*s.NumBonds()),
		Charge:       s.NetCharge(),
	}
	for i, a := range s.Atoms {
		vec, err := e.vocab.EncodeAtom(a)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncoding,
				fmt.Sprintf("atom %d", i))
		}
		g.NodeFeatures = append(g.NodeFeatures, vec)
	}
	for i, b := range s.Bonds {
		vec, err := e.vocab.EncodeBond(b)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncoding,
				fmt.Sprintf("bond %d", i))
		}
		g.EdgeIndex[0] = append(g.EdgeIndex[0], int32(b.A), int32(b.B))
		g.EdgeIndex[1] = append(g.EdgeIndex[1], int32(b.B), int32(b.A))
		g.EdgeFeatures = append(g.EdgeFeatures, vec, vec)
	}
	return g, nil
}
