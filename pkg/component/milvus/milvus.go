// Package milvus wraps the Milvus SDK client with the collection, upsert,
// search and delete operations needed by the vector index.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// Options returns the options the client was created with.
func (c *Client) Options() *milvusopts.Options {
	return c.opts
}

// CollectionSchema defines a collection with a VarChar primary key and one float vector field.
type CollectionSchema struct {
	Name        string
	Description string
	PrimaryKey  string
	KeyMaxLen   int
	VectorField string
	Dimension   int
	Metric      entity.MetricType
	NList       int
	MetaFields  []MetaField
}

// MetaField defines a scalar field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VarChar only
}

// EnsureCollection creates, indexes and loads the collection if it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(schema.PrimaryKey).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(schema.KeyMaxLen)).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(schema.VectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)))

		for _, f := range schema.MetaFields {
			field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
			if f.DataType == entity.FieldTypeVarChar {
				field.WithMaxLength(int64(f.MaxLen))
			}
			collSchema.WithField(field)
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(schema.Metric, schema.NList)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, schema.VectorField, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Upsert writes the given columns, replacing rows with the same primary key.
func (c *Client) Upsert(ctx context.Context, collection string, columns ...column.Column) (int64, error) {
	result, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert: %w", err)
	}
	return result.UpsertCount, nil
}

// Flush seals pending segments so that row counts reflect the last writes.
func (c *Client) Flush(ctx context.Context, collection string) error {
	task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchRequest describes a single-vector ANN search.
type SearchRequest struct {
	Collection   string
	VectorField  string
	Vector       []float32
	TopK         int
	Filter       string
	NProbe       int
	OutputFields []string
}

// SearchResult represents a single search hit.
type SearchResult struct {
	ID     string
	Score  float32
	Fields map[string]any
}

// Search performs a vector similarity search with strong consistency.
func (c *Client) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(req.Collection, req.TopK, []entity.Vector{entity.FloatVector(req.Vector)}).
		WithANNSField(req.VectorField).
		WithSearchParam("nprobe", strconv.Itoa(req.NProbe)).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(req.OutputFields...)
	if req.Filter != "" {
		opt = opt.WithFilter(req.Filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := SearchResult{Score: rs.Scores[i], Fields: make(map[string]any, len(rs.Fields))}
		if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = ids.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				hit.Fields[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				hit.Fields[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, hit)
	}
	return out, nil
}

// Delete removes every row matching expr.
func (c *Client) Delete(ctx context.Context, collection, expr string) (int64, error) {
	result, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr))
	if err != nil {
		return 0, fmt.Errorf("failed to delete: %w", err)
	}
	return result.DeleteCount, nil
}

// Count returns the number of live rows matching expr (all rows when expr is empty).
func (c *Client) Count(ctx context.Context, collection, expr string) (int64, error) {
	opt := milvusclient.NewQueryOption(collection).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong)
	if expr != "" {
		opt = opt.WithFilter(expr)
	}

	rs, err := c.client.Query(ctx, opt)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	return col.GetAsInt64(0)
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
