package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
)

type recordedCall struct {
	cypher string
	params map[string]any
}

// fakeRunner scripts query results without a live graph. Handlers receive the
// statement and parameters of each call; calls are recorded for assertions.
type fakeRunner struct {
	writes []recordedCall
	reads  []recordedCall

	onWrite func(cypher string, params map[string]any) ([]map[string]any, error)
	onRead  func(cypher string, params map[string]any) ([]map[string]any, error)
}

func (f *fakeRunner) Write(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.writes = append(f.writes, recordedCall{cypher: cypher, params: params})
	if f.onWrite != nil {
		return f.onWrite(cypher, params)
	}
	return nil, nil
}

func (f *fakeRunner) Read(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.reads = append(f.reads, recordedCall{cypher: cypher, params: params})
	if f.onRead != nil {
		return f.onRead(cypher, params)
	}
	return nil, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeSink struct {
	entityErrors []string
	batchErrors  []string
}

func (s *fakeSink) TrackEntityError(entityID, label string, _ error, _ string) {
	s.entityErrors = append(s.entityErrors, label+":"+entityID)
}

func (s *fakeSink) TrackBatchError(batchType string, _ int, _ error, _ string) {
	s.batchErrors = append(s.batchErrors, batchType)
}
