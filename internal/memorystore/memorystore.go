// Package memorystore wraps a Qdrant-backed long-term memory collection:
// semantic search with optional relationship sidebands, get-by-id,
// get-related filtered by edge kinds, and add-memory with a container
// tag. Follows internal/memory/storage.go's shape, generalized from its
// personal/collective split to a single free-form container tag, and
// from its flat RelatedMemories []string to typed Edge{ToID, Kind}
// entries (see internal/memory/linker.go for the bidirectional-link
// bookkeeping this replaces).
package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"tangent/internal/types"
)

const vectorDim = 384

// Store wraps a Qdrant collection of memories.
type Store struct {
	client         *qdrant.Client
	collectionName string
}

// New creates a memory store client and ensures its collection exists.
func New(qdrantURL, collectionName, apiKey string) (*Store, error) {
	host := strings.TrimPrefix(qdrantURL, "http://")
	host = strings.TrimPrefix(host, "https://")
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   6334,
		APIKey: apiKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collectionName: collectionName}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorDim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	indexes := []struct {
		field string
		typ   qdrant.PayloadSchemaType
	}{
		{"container_tag", qdrant.PayloadSchemaType_Keyword},
		{"created_at", qdrant.PayloadSchemaType_Integer},
		{"last_accessed_at", qdrant.PayloadSchemaType_Integer},
	}
	for _, idx := range indexes {
		fieldType := qdrant.FieldType(idx.typ)
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collectionName,
			FieldName:      idx.field,
			FieldType:      &fieldType,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			log.Printf("[memorystore] warning: failed to create index for %s (may already exist): %v", idx.field, err)
		}
	}
	return nil
}

// Query is the memory-store search contract. A blank Text is a valid
// "fetch recent memories" probe.
type Query struct {
	Text           string
	ContainerTag   string
	Limit          int
	MinScore       float64
	IncludeRelated bool
}

// Search performs the query contract: blank Text skips embedding and
// returns the most-recently-accessed memories (scores zero-valued);
// non-blank Text performs the normal embed-then-search path using the
// caller-supplied embedding.
func (s *Store) Search(ctx context.Context, q Query, queryEmbedding []float32) ([]types.Memory, error) {
	if strings.TrimSpace(q.Text) == "" {
		return s.fetchRecent(ctx, q)
	}
	return s.vectorSearch(ctx, q, queryEmbedding)
}

func (s *Store) vectorSearch(ctx context.Context, q Query, queryEmbedding []float32) ([]types.Memory, error) {
	var filter *qdrant.Filter
	if q.ContainerTag != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("container_tag", q.ContainerTag)},
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]types.Memory, 0, len(result))
	for _, point := range result {
		if float64(point.Score) < q.MinScore {
			continue
		}
		mem := scoredPointToMemory(point)
		if !q.IncludeRelated {
			mem.Edges = nil
		}
		out = append(out, mem)
	}
	return out, nil
}

func (s *Store) fetchRecent(ctx context.Context, q Query) ([]types.Memory, error) {
	var filter *qdrant.Filter
	if q.ContainerTag != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("container_tag", q.ContainerTag)},
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collectionName,
		Filter:         filter,
		OrderBy:        &qdrant.OrderBy{Key: "last_accessed_at", Direction: qdrant.Direction_Desc.Enum()},
		Limit:          qdrant.PtrOf(uint32(limit * 3)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch recent failed: %w", err)
	}

	memories := make([]types.Memory, 0, len(points))
	for _, p := range points {
		mem := retrievedPointToMemory(p)
		mem.Similarity = 0
		if !q.IncludeRelated {
			mem.Edges = nil
		}
		memories = append(memories, mem)
	}

	sort.Slice(memories, func(i, j int) bool {
		ti, tj := memories[i].LastAccessedAt, memories[j].LastAccessedAt
		if ti == nil || tj == nil {
			return ti != nil
		}
		return ti.After(*tj)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// GetByID retrieves a single memory by its id.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("memory not found: %s", id)
	}
	mem := retrievedPointToMemory(points[0])
	return &mem, nil
}

// GetRelated returns memories linked to id via an edge whose kind is in
// kinds (any kind if kinds is empty).
func (s *Store) GetRelated(ctx context.Context, id string, kinds []types.EdgeKind) ([]types.Memory, error) {
	anchor, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(anchor.Edges) == 0 {
		return nil, nil
	}

	allowed := make(map[types.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	ids := make([]string, 0, len(anchor.Edges))
	for _, e := range anchor.Edges {
		if len(allowed) == 0 || allowed[e.Kind] {
			ids = append(ids, e.ToID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get related failed: %w", err)
	}

	out := make([]types.Memory, 0, len(points))
	for _, p := range points {
		out = append(out, retrievedPointToMemory(p))
	}
	return out, nil
}

// AddInput describes a new memory to persist.
type AddInput struct {
	ID           string // optional custom id; generated if blank
	Content      string
	Embedding    []float32
	ContainerTag string
	Metadata     map[string]interface{}
	Edges        []types.Edge
}

// AddMemory stores a new memory, returning its id.
func (s *Store) AddMemory(ctx context.Context, in AddInput) (string, error) {
	if len(in.Embedding) != vectorDim {
		return "", fmt.Errorf("invalid embedding dimension: expected %d, got %d", vectorDim, len(in.Embedding))
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	edgesJSON, err := json.Marshal(in.Edges)
	if err != nil {
		return "", fmt.Errorf("failed to marshal edges: %w", err)
	}

	metadataStruct := make(map[string]*qdrant.Value, len(in.Metadata))
	for k, v := range in.Metadata {
		switch val := v.(type) {
		case string:
			metadataStruct[k] = qdrant.NewValueString(val)
		case int:
			metadataStruct[k] = qdrant.NewValueInt(int64(val))
		case float64:
			metadataStruct[k] = qdrant.NewValueDouble(val)
		case bool:
			metadataStruct[k] = qdrant.NewValueBool(val)
		}
	}

	payload := map[string]*qdrant.Value{
		"memory_id":        qdrant.NewValueString(id),
		"content":          qdrant.NewValueString(in.Content),
		"container_tag":    qdrant.NewValueString(in.ContainerTag),
		"created_at":       qdrant.NewValueInt(now.Unix()),
		"last_accessed_at": qdrant.NewValueInt(now.Unix()),
		"edges":            qdrant.NewValueString(string(edgesJSON)),
		"metadata":         {Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: metadataStruct}}},
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectors(in.Embedding...),
		Payload: payload,
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}
	return id, nil
}

func scoredPointToMemory(point *qdrant.ScoredPoint) types.Memory {
	mem := memoryFromPayload(point.Payload)
	mem.Similarity = float64(point.Score)
	return mem
}

func retrievedPointToMemory(point *qdrant.RetrievedPoint) types.Memory {
	return memoryFromPayload(point.Payload)
}

func memoryFromPayload(payload map[string]*qdrant.Value) types.Memory {
	mem := types.Memory{
		ID:      getString(payload, "memory_id"),
		Content: getString(payload, "content"),
	}
	if created := getInt(payload, "created_at"); created > 0 {
		t := time.Unix(created, 0)
		mem.CreatedAt = &t
	}
	if accessed := getInt(payload, "last_accessed_at"); accessed > 0 {
		t := time.Unix(accessed, 0)
		mem.LastAccessedAt = &t
	}
	if raw := getString(payload, "edges"); raw != "" {
		var edges []types.Edge
		if err := json.Unmarshal([]byte(raw), &edges); err == nil {
			mem.Edges = edges
		}
	}
	return mem
}

func getString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
