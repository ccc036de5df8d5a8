package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Collection field names.  The id is the historical record's store id, so a
// retrieval hit resolves directly against the record store.
const (
	fieldID     = "id"
	fieldPort   = "port"
	fieldVector = "embedding"
)

// EnsureCollection creates the record collection, its HNSW index, and loads
// it into memory, idempotently.  Called on worker startup before any upsert.
func (c *Client) EnsureCollection(ctx context.Context) error {
	has, err := c.mc.HasCollection(ctx, c.cfg.Collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus collection check failed")
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: c.cfg.Collection,
			Description:    "historical port-call disbursement record embeddings",
			Fields: []*entity.Field{
				{Name: fieldID, DataType: entity.FieldTypeVarChar, PrimaryKey: true,
					TypeParams: map[string]string{"max_length": "64"}},
				{Name: fieldPort, DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "128"}},
				{Name: fieldVector, DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", c.cfg.EmbeddingDim)}},
			},
		}
		if err := c.mc.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus collection creation failed")
		}

		idx, err := entity.NewIndexHNSW(c.cfg.metricType(), 16, 200)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "milvus index construction failed")
		}
		if err := c.mc.CreateIndex(ctx, c.cfg.Collection, fieldVector, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus index creation failed")
		}
		c.logger.Info("collection created", logging.String("collection", c.cfg.Collection))
	}

	if err := c.mc.LoadCollection(ctx, c.cfg.Collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus collection load failed")
	}
	return nil
}

// Upsert writes one record's embedding, replacing any previous vector for
// the same record id.  This is the ingestion write path used by the worker;
// the serving path never writes.
func (c *Client) Upsert(ctx context.Context, recordID, normalizedPort string, vector []float32) error {
	if len(vector) != c.cfg.EmbeddingDim {
		return errors.New(errors.ErrCodeValidation, "vector dimension mismatch").
			WithDetail(fmt.Sprintf("got=%d want=%d", len(vector), c.cfg.EmbeddingDim))
	}

	_, err := c.mc.Upsert(ctx, c.cfg.Collection, "",
		entity.NewColumnVarChar(fieldID, []string{recordID}),
		entity.NewColumnVarChar(fieldPort, []string{normalizedPort}),
		entity.NewColumnFloatVector(fieldVector, c.cfg.EmbeddingDim, [][]float32{vector}),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus upsert failed")
	}
	return nil
}

// Remove deletes a record's vector, used when a record is retracted from
// the store.
func (c *Client) Remove(ctx context.Context, recordID string) error {
	expr := fmt.Sprintf(`%s == "%s"`, fieldID, escapeString(recordID))
	if err := c.mc.Delete(ctx, c.cfg.Collection, "", expr); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus delete failed")
	}
	return nil
}

// buildFilter translates a domain query filter into a Milvus boolean
// expression; empty filter means no expression.
func buildFilter(filter estimate.QueryFilter) string {
	if filter.Port == "" {
		return ""
	}
	return fmt.Sprintf(`%s == "%s"`, fieldPort, escapeString(filter.Port))
}

// escapeString guards quoted literals in Milvus expressions.
func escapeString(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
