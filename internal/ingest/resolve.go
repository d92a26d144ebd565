package ingest

import (
	"github.com/codegraph/codegraph/internal/parser"
	"github.com/codegraph/codegraph/internal/store"
)

// resolver turns parser edge refs into store edges. Full-key refs resolve
// through the upserted definition set; name-only refs fan out to every
// defined node sharing the name — that fan-out is the documented cross-file
// call ambiguity, not a bug. A ref matching nothing materializes a ghost
// node holding only the key fields it carried.
type resolver struct {
	tx     *store.Store
	corpus string

	idMap       map[string]int64
	funcsByName map[string][]int64
	modsByName  map[string][]int64
	attrsByName map[string][]int64
}

func newResolver(tx *store.Store, corpus string, nodes []*store.Node, idMap map[string]int64) *resolver {
	r := &resolver{
		tx:          tx,
		corpus:      corpus,
		idMap:       idMap,
		funcsByName: make(map[string][]int64),
		modsByName:  make(map[string][]int64),
		attrsByName: make(map[string][]int64),
	}
	for _, n := range nodes {
		id, ok := idMap[n.Key]
		if !ok {
			continue
		}
		switch n.Label {
		case parser.LabelFunction:
			r.funcsByName[n.Name] = append(r.funcsByName[n.Name], id)
		case parser.LabelModule:
			r.modsByName[n.Name] = append(r.modsByName[n.Name], id)
		}
	}
	return r
}

type edgeKey struct {
	src, tgt int64
	typ      string
}

func (r *resolver) resolveEdges(results []*fileResult) ([]*store.Edge, error) {
	var edges []*store.Edge
	seen := make(map[edgeKey]bool)

	for _, fr := range results {
		if fr.Err != nil {
			continue
		}
		for _, e := range fr.Res.Edges {
			srcIDs, err := r.resolve(e.From)
			if err != nil {
				return nil, err
			}
			tgtIDs, err := r.resolve(e.To)
			if err != nil {
				return nil, err
			}
			for _, src := range srcIDs {
				for _, tgt := range tgtIDs {
					k := edgeKey{src, tgt, e.Type}
					if seen[k] {
						continue
					}
					seen[k] = true
					edges = append(edges, &store.Edge{
						Corpus:   r.corpus,
						SourceID: src,
						TargetID: tgt,
						Type:     e.Type,
					})
				}
			}
		}
	}
	return edges, nil
}

// resolve returns the node IDs a ref addresses, creating a ghost when the
// ref matches nothing.
func (r *resolver) resolve(ref parser.Ref) ([]int64, error) {
	// Fuzzy name-only refs: call targets, imported modules, attribute calls.
	if ref.Path == "" && ref.Label != parser.LabelFile {
		var index map[string][]int64
		switch ref.Label {
		case parser.LabelFunction:
			index = r.funcsByName
		case parser.LabelModule:
			index = r.modsByName
		case parser.LabelAttributeCall:
			index = r.attrsByName
		}
		if ids := index[ref.Name]; len(ids) > 0 {
			return ids, nil
		}
		id, err := r.ghost(ref)
		if err != nil {
			return nil, err
		}
		index[ref.Name] = []int64{id}
		return []int64{id}, nil
	}

	// Full-key refs address exactly one node.
	key := store.NodeKey(ref.Label, ref.Name, ref.Path)
	if id, ok := r.idMap[key]; ok {
		return []int64{id}, nil
	}
	id, err := r.ghost(ref)
	if err != nil {
		return nil, err
	}
	return []int64{id}, nil
}

// ghost upserts an endpoint-only node. Ghosts are indistinguishable from
// defined nodes in query results apart from the advisory inferred flag.
func (r *resolver) ghost(ref parser.Ref) (int64, error) {
	n := &store.Node{
		Corpus:     r.corpus,
		Label:      ref.Label,
		Name:       ref.Name,
		FilePath:   ref.Path,
		Properties: map[string]any{"inferred": true},
	}
	n.Key = store.NodeKey(n.Label, n.Name, n.FilePath)
	if id, ok := r.idMap[n.Key]; ok {
		return id, nil
	}
	id, err := r.tx.UpsertNode(n)
	if err != nil {
		return 0, err
	}
	r.idMap[n.Key] = id
	return id, nil
}
