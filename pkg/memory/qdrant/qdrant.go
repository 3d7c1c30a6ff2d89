// Package qdrant implements memory.VectorStore on top of a Qdrant server
// reached over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/shopper/pkg/memory"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	externalIDKey = "_external_id"
	insertedKey   = "_inserted_ns"
	scrollPage    = 256
)

// Store is a Qdrant-backed vector store using cosine collections.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New dials a Qdrant gRPC endpoint (host:port).
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s: %w", addr, err)
	}
	s := NewWithConn(conn)
	s.conn = conn
	return s, nil
}

// NewWithConn builds a Store over an existing connection.
func NewWithConn(conn grpc.ClientConnInterface) *Store {
	return &Store{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}
}

// Close closes the connection opened by New.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// CreateCollection implements memory.VectorStore.
func (s *Store) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists.GetResult().GetExists() {
		info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
		if err != nil {
			return fmt.Errorf("qdrant: get collection: %w", err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != vectorSize {
			return fmt.Errorf("%w: collection %q has %d, got %d", memory.ErrDimensionMismatch, name, size, vectorSize)
		}
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection: %w", err)
	}
	return nil
}

// Upsert implements memory.VectorStore.
func (s *Store) Upsert(ctx context.Context, collection string, points []memory.Point) error {
	now := time.Now().UnixNano()
	qPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload := toPayload(p.Payload)
		payload[externalIDKey] = stringValue(p.ID)
		payload[insertedKey] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: now + int64(i)}}
		if p.Timestamp != 0 {
			payload["timestamp"] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: p.Timestamp}}
		}
		qPoints[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(p.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qPoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert points: %w", err)
	}
	return nil
}

// Search implements memory.VectorStore.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]memory.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    withPayload(),
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search points: %w", err)
	}

	results := make([]memory.SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		point := toPoint(r.GetId(), r.GetPayload())
		results = append(results, memory.SearchResult{
			ID:    point.ID,
			Score: r.GetScore(),
			Point: point,
		})
	}
	return results, nil
}

// List implements memory.VectorStore by scrolling the whole collection.
// Points are returned in insertion order.
func (s *Store) List(ctx context.Context, collection string) ([]memory.Point, error) {
	type entry struct {
		point    memory.Point
		inserted int64
	}
	var (
		entries []entry
		offset  *pb.PointId
		limit   = uint32(scrollPage)
	)
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    withPayload(),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll points: %w", err)
		}
		for _, r := range resp.GetResult() {
			entries = append(entries, entry{
				point:    toPoint(r.GetId(), r.GetPayload()),
				inserted: r.GetPayload()[insertedKey].GetIntegerValue(),
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].inserted < entries[j].inserted })
	out := make([]memory.Point, len(entries))
	for i, e := range entries {
		out[i] = e.point
	}
	return out, nil
}

// Count implements memory.VectorStore.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// PointID maps an arbitrary id to the UUID form Qdrant requires. Valid UUIDs
// are kept; anything else gets a stable name-based UUID.
func PointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("shopper:"+id)).String()
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
}

func toPoint(id *pb.PointId, payload map[string]*pb.Value) memory.Point {
	p := memory.Point{Payload: fromPayload(payload)}
	if ext, ok := p.Payload[externalIDKey].(string); ok && ext != "" {
		p.ID = ext
	} else if id.GetUuid() != "" {
		p.ID = id.GetUuid()
	} else {
		p.ID = fmt.Sprintf("%d", id.GetNum())
	}
	if ts, ok := p.Payload["timestamp"].(int64); ok {
		p.Timestamp = ts
	}
	delete(p.Payload, externalIDKey)
	delete(p.Payload, insertedKey)
	return p
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func toPayload(in map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(in)+2)
	for k, v := range in {
		if pv := toValue(v); pv != nil {
			out[k] = pv
		}
	}
	return out
}

func toValue(v any) *pb.Value {
	switch val := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{}}
	case string:
		return stringValue(val)
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(val)}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case []string:
		list := &pb.ListValue{}
		for _, s := range val {
			list.Values = append(list.Values, stringValue(s))
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: list}}
	case []any:
		list := &pb.ListValue{}
		for _, item := range val {
			if pv := toValue(item); pv != nil {
				list.Values = append(list.Values, pv)
			}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: list}}
	case map[string]any:
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: toPayload(val)}}}
	default:
		return stringValue(fmt.Sprint(val))
	}
}

func fromPayload(in map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, fromValue(item))
		}
		return items
	case *pb.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}

var _ memory.VectorStore = (*Store)(nil)
