package milvus

import (
	"context"
	"sort"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// searchEf is the HNSW search-time beam width.
const searchEf = 64

// Index adapts the Milvus client to the domain's SimilarityIndex contract.
type Index struct {
	c *Client
}

var _ estimate.SimilarityIndex = (*Index)(nil)

// NewIndex wraps an established client.
func NewIndex(c *Client) *Index {
	return &Index{c: c}
}

// Query returns up to k neighbor references ordered by ascending distance.
// Index unavailability is reported as ErrCodeIndexUnavailable so the engine
// can distinguish a failed call from a genuinely empty result.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter estimate.QueryFilter) ([]estimate.NeighborRef, error) {
	cfg := i.c.cfg
	if k <= 0 {
		k = cfg.DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SearchTimeout)
	defer cancel()

	sp, err := entity.NewIndexHNSWSearchParam(searchEf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "milvus search param construction failed")
	}

	results, err := i.c.mc.Search(ctx,
		cfg.Collection,
		nil,
		buildFilter(filter),
		[]string{fieldID},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		cfg.metricType(),
		k,
		sp,
	)
	if err != nil {
		i.c.logger.Warn("search failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus search failed")
	}

	// Milvus reports L2 scores as distances but IP scores as similarities,
	// where higher means closer.  Convert IP scores to cosine distance up
	// front; embedding vectors are unit length, so scores sit in [-1, 1]
	// and 1-s is monotone in the ranking.
	invert := cfg.metricType() == entity.IP

	refs := make([]estimate.NeighborRef, 0, k)
	for _, res := range results {
		ids, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "milvus returned unexpected id column type")
		}
		for j, id := range ids.Data() {
			if j >= len(res.Scores) {
				break
			}
			d := float64(res.Scores[j])
			if invert {
				d = 1 - d
			}
			refs = append(refs, estimate.NeighborRef{
				RecordID: id,
				Distance: d,
			})
		}
	}

	// Hits come back ranked per query vector; re-sort so the
	// ascending-distance contract holds.
	sort.Slice(refs, func(a, b int) bool { return refs[a].Distance < refs[b].Distance })
	if len(refs) > k {
		refs = refs[:k]
	}
	// Similarities above 1 only occur for non-normalized vectors; clamp
	// after ranking so distances stay non-negative.
	for j := range refs {
		if refs[j].Distance < 0 {
			refs[j].Distance = 0
		}
	}
	return refs, nil
}
