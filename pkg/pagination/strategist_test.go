package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedStub simulates an upstream with total items, recording every
// call it receives.
type pagedStub struct {
	mu          sync.Mutex
	total       int
	delay       time.Duration
	calls       []call
	inflight    int
	maxInflight int
	failPages   map[int]bool
}

type call struct{ page, limit int }

func (s *pagedStub) fetch(ctx context.Context, page, limit int) (PageResult[int], error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{page, limit})
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	fail := s.failPages[page]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if fail {
		return PageResult[int]{}, errors.New("page unavailable")
	}

	start := (page - 1) * limit
	items := make([]int, 0, limit)
	for i := start; i < start+limit && i < s.total; i++ {
		items = append(items, i)
	}
	return PageResult[int]{
		Items:   items,
		Total:   s.total,
		HasMore: start+len(items) < s.total,
	}, nil
}

// newTestStrategist removes the politeness delays so tests stay fast.
func newTestStrategist(stub *pagedStub, opts Options) *Strategist[int] {
	s := NewStrategist(stub.fetch, opts, zerolog.Nop())
	s.seqDelay = 0
	s.batchPause = 0
	return s
}

func TestValidate(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{-3, 99999, 1, MaxLimit},
		{1, 0, 1, DefaultLimit},
		{0, 50, 1, 50},
		{3, -1, 3, DefaultLimit},
		{2, 100, 2, 100},
	}

	for _, tt := range tests {
		page, limit := Validate(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestStrategist_SmallDatasetSingleCall(t *testing.T) {
	stub := &pagedStub{total: 50}
	s := newTestStrategist(stub, Options{})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, result.TotalFetched)
	assert.Equal(t, 50, result.TotalAvailable)
	assert.Equal(t, 1, result.ChunksProcessed)

	// Probe plus exactly one downstream call sized to the dataset.
	require.Len(t, stub.calls, 2)
	assert.Equal(t, call{1, probeLimit}, stub.calls[0])
	assert.Equal(t, call{1, 50}, stub.calls[1])
}

func TestStrategist_ModerateDatasetSequential(t *testing.T) {
	stub := &pagedStub{total: 500}
	s := newTestStrategist(stub, Options{ChunkSize: 100})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 500, result.TotalFetched)
	assert.Equal(t, 5, result.ChunksProcessed)

	// Probe plus five sequential chunk calls of limit 100.
	require.Len(t, stub.calls, 6)
	for i, c := range stub.calls[1:] {
		assert.Equal(t, call{i + 1, 100}, c)
	}
	assert.Equal(t, 1, stub.maxInflight, "sequential path never overlaps calls")
}

func TestStrategist_FinalChunkRequestsRemainder(t *testing.T) {
	stub := &pagedStub{total: 250}
	s := newTestStrategist(stub, Options{ChunkSize: 100})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, result.TotalFetched)
	last := stub.calls[len(stub.calls)-1]
	assert.Equal(t, 50, last.limit, "final chunk requests exactly the remaining slots")
}

func TestStrategist_SequentialPartialFailure(t *testing.T) {
	stub := &pagedStub{total: 500, failPages: map[int]bool{3: true}}
	s := newTestStrategist(stub, Options{ChunkSize: 100})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err, "page failure is partial success, not an error")

	assert.Equal(t, 200, result.TotalFetched)
	assert.Equal(t, 2, result.ChunksProcessed)
}

func TestStrategist_LargeDatasetParallel(t *testing.T) {
	stub := &pagedStub{total: 2000, delay: 3 * time.Millisecond}
	s := newTestStrategist(stub, Options{ChunkSize: 100})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2000, result.TotalFetched)
	assert.Equal(t, 20, result.ChunksProcessed)
	assert.LessOrEqual(t, stub.maxInflight, DefaultConcurrency,
		"parallel path is bounded by the configured concurrency")
	assert.GreaterOrEqual(t, stub.maxInflight, 2, "parallel path overlaps calls")

	// Data arrives in page order despite parallel fetching.
	for i, v := range result.Data {
		assert.Equal(t, i, v)
	}
}

func TestStrategist_ParallelSkipsFailedPages(t *testing.T) {
	stub := &pagedStub{total: 2000, failPages: map[int]bool{5: true, 7: true}}
	s := newTestStrategist(stub, Options{ChunkSize: 100})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1800, result.TotalFetched)
	assert.Equal(t, 18, result.ChunksProcessed)
}

func TestStrategist_MaxTotalCapsFetch(t *testing.T) {
	stub := &pagedStub{total: 5000}
	s := newTestStrategist(stub, Options{ChunkSize: 100, MaxTotal: 300})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 300, result.TotalFetched)
	assert.Equal(t, 5000, result.TotalAvailable)
}

func TestStrategist_EmptyDataset(t *testing.T) {
	stub := &pagedStub{total: 0}
	s := newTestStrategist(stub, Options{})

	result, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Data)
	assert.Equal(t, 0, result.ChunksProcessed)
	require.Len(t, stub.calls, 1, "only the probe is issued")
}

func TestStrategist_ProbeFailureIsFatal(t *testing.T) {
	stub := &pagedStub{total: 100, failPages: map[int]bool{1: true}}
	s := newTestStrategist(stub, Options{})

	_, err := s.FetchAll(context.Background())
	require.Error(t, err)
}

func TestStrategist_SequentialPolitenessDelay(t *testing.T) {
	stub := &pagedStub{total: 300}
	s := NewStrategist(stub.fetch, Options{ChunkSize: 100}, zerolog.Nop())
	s.seqDelay = 30 * time.Millisecond

	start := time.Now()
	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	// Two inter-chunk delays between three chunks.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
