package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
)

// scrollPageSize bounds one scroll request during site backup.
const scrollPageSize = 1024

// QdrantIndex implements interfaces.VectorIndex against a Qdrant server.
type QdrantIndex struct {
	client *qdrant.Client
	logger arbor.ILogger
}

// NewQdrantIndex connects to the configured Qdrant instance.
func NewQdrantIndex(cfg common.VectorConfig, logger arbor.ILogger) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("Qdrant client connected")
	return &QdrantIndex{client: client, logger: logger}, nil
}

// PointIDFor derives the Qdrant point UUID for a chunk ID. Deterministic,
// so re-upserting the same chunk overwrites its point.
func PointIDFor(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// Upsert writes points to the collection.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []interfaces.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		schemaJSON, err := json.Marshal(p.Payload.Schema)
		if err != nil {
			return fmt.Errorf("failed to encode schema for %s: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointIDFor(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"url":    p.Payload.URL,
				"name":   p.Payload.Name,
				"site":   p.Payload.Site,
				"schema": string(schemaJSON),
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(structs), err)
	}
	return nil
}

// siteFilter matches every point of one site.
func siteFilter(site string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("site", site)},
	}
}

// DeleteBySite removes every point of a site, returning how many existed.
func (q *QdrantIndex) DeleteBySite(ctx context.Context, collection, site string) (int, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         siteFilter(site),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points for site %s: %w", site, err)
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(siteFilter(site)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete points for site %s: %w", site, err)
	}

	q.logger.Info().Str("site", site).Int64("deleted", int64(count)).Msg("Site points deleted from index")
	return int(count), nil
}

// PointsBySite scrolls all points of a site and returns point ID ->
// payload JSON, the shape the rollback journal stores.
func (q *QdrantIndex) PointsBySite(ctx context.Context, collection, site string) (map[string]string, error) {
	result := make(map[string]string)
	var offset *qdrant.PointId

	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         siteFilter(site),
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points for site %s: %w", site, err)
		}

		for _, p := range points {
			id := pointIDString(p.Id)
			if _, seen := result[id]; seen {
				continue // offset page overlap
			}
			payload, err := json.Marshal(payloadToMap(p.Payload))
			if err != nil {
				return nil, fmt.Errorf("failed to encode payload for point %s: %w", id, err)
			}
			result[id] = string(payload)
		}

		if len(points) < scrollPageSize {
			break
		}
		offset = points[len(points)-1].Id
	}
	return result, nil
}

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// payloadToMap converts a Qdrant payload to plain Go values for JSON
// serialization.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
