// Package qdrant provides a vector index backed by a qdrant server
// over gRPC. The collection is created on first use with cosine
// distance; document IDs are carried in the point payload because
// qdrant point IDs must be numeric or UUID.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/google/uuid"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// payloadDocID is the payload field carrying the document ID.
const payloadDocID = "doc_id"

// pointNamespace derives stable point UUIDs from document IDs, so
// re-adding a document overwrites its point.
var pointNamespace = uuid.MustParse("9f2c4aa1-5b0e-4d7b-9c3e-a1d2b3c4d5e6")

// Config holds connection settings for the qdrant index.
type Config struct {
	// Addr is the qdrant gRPC address (host:port).
	Addr string

	// Collection is the collection name.
	Collection string

	// Dimension is the vector size for collection creation.
	Dimension int
}

// Index is a qdrant-backed implementation of driven.VectorIndex.
type Index struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
	dimension   int

	ensureOnce sync.Once
	ensureErr  error
}

// New connects to qdrant. The collection is created lazily on the
// first write or search.
func New(cfg Config) (*Index, error) {
	if cfg.Addr == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant address and collection are required", domain.ErrInvalidInput)
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", cfg.Addr, err)
	}

	return &Index{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		collection:  cfg.Collection,
		dimension:   cfg.Dimension,
	}, nil
}

// ensureCollection creates the collection with cosine distance when
// it does not exist yet.
func (ix *Index) ensureCollection(ctx context.Context) error {
	ix.ensureOnce.Do(func() {
		list, err := ix.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
		if err != nil {
			ix.ensureErr = fmt.Errorf("listing collections: %w", err)
			return
		}
		for _, col := range list.GetCollections() {
			if col.GetName() == ix.collection {
				return
			}
		}

		_, err = ix.collections.Create(ctx, &qdrantclient.CreateCollection{
			CollectionName: ix.collection,
			VectorsConfig: &qdrantclient.VectorsConfig{
				Config: &qdrantclient.VectorsConfig_Params{
					Params: &qdrantclient.VectorParams{
						Size:     uint64(ix.dimension),
						Distance: qdrantclient.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			ix.ensureErr = fmt.Errorf("creating collection %s: %w", ix.collection, err)
		}
	})
	return ix.ensureErr
}

// pointID derives the stable point UUID for a document ID.
func pointID(docID string) *qdrantclient.PointId {
	return &qdrantclient.PointId{
		PointIdOptions: &qdrantclient.PointId_Uuid{
			Uuid: uuid.NewSHA1(pointNamespace, []byte(docID)).String(),
		},
	}
}

// Add inserts or replaces the vector for a document ID.
func (ix *Index) Add(ctx context.Context, docID string, vector []float32) error {
	if err := ix.ensureCollection(ctx); err != nil {
		return err
	}

	point := &qdrantclient.PointStruct{
		Id: pointID(docID),
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: vector},
			},
		},
		Payload: map[string]*qdrantclient.Value{
			payloadDocID: {Kind: &qdrantclient.Value_StringValue{StringValue: docID}},
		},
	}

	_, err := ix.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: ix.collection,
		Points:         []*qdrantclient.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upserting point for %s: %w", docID, err)
	}
	return nil
}

// Delete removes a vector from the index.
func (ix *Index) Delete(ctx context.Context, docID string) error {
	if err := ix.ensureCollection(ctx); err != nil {
		return err
	}

	_, err := ix.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: ix.collection,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Points{
				Points: &qdrantclient.PointsIdsList{
					Ids: []*qdrantclient.PointId{pointID(docID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point for %s: %w", docID, err)
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	resp, err := ix.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: ix.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{payloadDocID},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", ix.collection, err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		val, ok := point.GetPayload()[payloadDocID]
		if !ok {
			continue
		}
		hits = append(hits, driven.VectorHit{
			DocID:      val.GetStringValue(),
			Similarity: float64(point.GetScore()),
		})
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (ix *Index) Count(ctx context.Context) (int, error) {
	if err := ix.ensureCollection(ctx); err != nil {
		return 0, err
	}

	resp, err := ix.points.Count(ctx, &qdrantclient.CountPoints{
		CollectionName: ix.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Ping validates the server is reachable.
func (ix *Index) Ping(ctx context.Context) error {
	_, err := ix.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorUnavailable, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (ix *Index) Close() error {
	return ix.conn.Close()
}
