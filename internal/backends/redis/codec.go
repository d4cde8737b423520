package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// SetCompressedJSON stores v as zstd-compressed JSON. Use it for large
// documents; the value is not readable by plain GET consumers.
func (s *Strings) SetCompressedJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, enc.EncodeAll(b, nil), ttl)
}

// GetCompressedJSON reads a value written by SetCompressedJSON into dest.
func (s *Strings) GetCompressedJSON(ctx context.Context, key string, dest any) (bool, error) {
	v, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	b, err := dec.DecodeAll([]byte(v), nil)
	if err != nil {
		return true, fmt.Errorf("value at [%s] is not zstd-compressed: %w", key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return true, err
	}
	return true, nil
}
