package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

// watermarkLayout is the timestamp format written to the graph. Millisecond
// precision keeps stored watermarks and in-memory times comparable after a
// round trip through the store.
const watermarkLayout = "2006-01-02T15:04:05.000Z07:00"

// MetadataService persists sync bookkeeping on a singleton metadata node per
// sync key. The watermark read here decides whether the next run is a full
// or an incremental fetch.
type MetadataService struct {
	runner Runner
	logger ectologger.Logger
}

func NewMetadataService(runner Runner, logger ectologger.Logger) *MetadataService {
	return &MetadataService{runner: runner, logger: logger}
}

// GetLastSyncTime returns the stored watermark for key, or the zero time when
// no sync has completed yet. Lookup failures are returned to the caller so it
// can decide between failing the run and falling back to a full sync.
func (s *MetadataService) GetLastSyncTime(ctx context.Context, key string) (time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.MetadataService.GetLastSyncTime")
	defer span.End()

	rows, err := s.runner.Read(ctx, `
		MATCH (m:SyncMetadata {key: $key})
		RETURN m.last_sync_time AS last_sync_time`,
		map[string]any{"key": key},
	)
	if err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 {
		return time.Time{}, nil
	}

	raw, ok := rows[0]["last_sync_time"].(string)
	if !ok || raw == "" {
		return time.Time{}, nil
	}

	ts, err := time.Parse(watermarkLayout, raw)
	if err != nil {
		// A corrupt watermark downgrades the next run to a full sync
		// instead of wedging the pipeline.
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_key":  key,
			"watermark": raw,
		}).Warn("Stored watermark is unparseable - treating as never synced")
		return time.Time{}, nil
	}
	return ts, nil
}

// SetLastSyncTime upserts the watermark for key, truncated to millisecond
// precision to match what GetLastSyncTime can read back.
func (s *MetadataService) SetLastSyncTime(ctx context.Context, key string, ts time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "graph.MetadataService.SetLastSyncTime")
	defer span.End()

	_, err := s.runner.Write(ctx, `
		MERGE (m:SyncMetadata {key: $key})
		SET m.last_sync_time = $ts, m.updated_at = $ts`,
		map[string]any{
			"key": key,
			"ts":  ts.UTC().Truncate(time.Millisecond).Format(watermarkLayout),
		},
	)
	return err
}
