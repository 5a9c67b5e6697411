package natsadapter

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/wavemap/internal/core/domain"
)

// waveMessage is the wire form of a wave batch on map.waves.polygons.
type waveMessage struct {
	ClearExisting bool                       `json:"clear_existing"`
	Features      *geojson.FeatureCollection `json:"features"`
}

// DecodeWaveBatch parses a wave message.
func DecodeWaveBatch(data []byte) (*domain.WaveBatch, error) {
	var msg waveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode wave batch: %w", err)
	}
	return BatchFromFeatures(msg.Features, msg.ClearExisting)
}

// BatchFromFeatures converts GeoJSON features into a wave batch. Polygon features contribute
// their outer ring, MultiPolygon features one polygon per member; any other geometry rejects
// the batch.
func BatchFromFeatures(fc *geojson.FeatureCollection, clearExisting bool) (*domain.WaveBatch, error) {
	batch := &domain.WaveBatch{ClearExisting: clearExisting}
	if fc == nil {
		return batch, nil
	}

	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) == 0 {
				return nil, domain.Invalid("features", fmt.Sprintf("feature %d has an empty polygon", i))
			}
			batch.Polygons = append(batch.Polygons, domain.WavePolygonFromRing(g[0]))
		case orb.MultiPolygon:
			for _, p := range g {
				if len(p) == 0 {
					continue
				}
				batch.Polygons = append(batch.Polygons, domain.WavePolygonFromRing(p[0]))
			}
		default:
			return nil, domain.Invalid("features", fmt.Sprintf("feature %d is not a polygon", i))
		}
	}
	return batch, nil
}

// EncodeWaveBatch renders batch in the wire form DecodeWaveBatch reads.
func EncodeWaveBatch(batch *domain.WaveBatch) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, p := range batch.Polygons {
		fc.Append(geojson.NewFeature(orb.Polygon{p.Ring()}))
	}
	data, err := json.Marshal(waveMessage{ClearExisting: batch.ClearExisting, Features: fc})
	if err != nil {
		return nil, fmt.Errorf("encode wave batch: %w", err)
	}
	return data, nil
}
