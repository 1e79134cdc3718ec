package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLastSyncTime_NeverSynced(t *testing.T) {
	runner := &fakeRunner{}
	s := NewMetadataService(runner, testLogger())

	ts, err := s.GetLastSyncTime(context.Background(), "crm_sync")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestGetLastSyncTime_RoundTripsWatermark(t *testing.T) {
	stored := "2026-08-30T11:22:33.444Z"
	runner := &fakeRunner{
		onRead: func(_ string, params map[string]any) ([]map[string]any, error) {
			assert.Equal(t, "crm_sync", params["key"])
			return []map[string]any{{"last_sync_time": stored}}, nil
		},
	}
	s := NewMetadataService(runner, testLogger())

	ts, err := s.GetLastSyncTime(context.Background(), "crm_sync")
	require.NoError(t, err)
	assert.Equal(t, stored, ts.UTC().Format(watermarkLayout))
}

func TestGetLastSyncTime_CorruptWatermarkDowngradesToFullSync(t *testing.T) {
	runner := &fakeRunner{
		onRead: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"last_sync_time": "yesterday-ish"}}, nil
		},
	}
	s := NewMetadataService(runner, testLogger())

	ts, err := s.GetLastSyncTime(context.Background(), "crm_sync")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestGetLastSyncTime_ReadFailure(t *testing.T) {
	runner := &fakeRunner{
		onRead: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := NewMetadataService(runner, testLogger())

	_, err := s.GetLastSyncTime(context.Background(), "crm_sync")
	assert.Error(t, err)
}

func TestSetLastSyncTime_TruncatesToMilliseconds(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, params map[string]any) ([]map[string]any, error) {
			return nil, nil
		},
	}
	s := NewMetadataService(runner, testLogger())

	ts := time.Date(2026, 8, 30, 11, 22, 33, 444999999, time.UTC)
	require.NoError(t, s.SetLastSyncTime(context.Background(), "crm_sync", ts))

	require.Len(t, runner.writes, 1)
	assert.Equal(t, "2026-08-30T11:22:33.444Z", runner.writes[0].params["ts"])
}
