package shipstation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipstation/pkg/shipstation"
)

func TestCachedClient_MemoizesLookups(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		carriers, err := cached.ListCarriers(ctx)
		require.NoError(t, err)
		assert.Len(t, carriers, 2)

		services, err := cached.ListServices(ctx, "stamps_com")
		require.NoError(t, err)
		assert.Len(t, services, 2)
	}

	assert.Equal(t, int64(1), mockAPI.ListCarriersCalls.Load())
	assert.Equal(t, int64(1), mockAPI.ListServicesCalls.Load())
}

func TestCachedClient_ServicesKeyedByCarrier(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	_, err := cached.ListServices(ctx, "stamps_com")
	require.NoError(t, err)
	_, err = cached.ListServices(ctx, "fedex")
	require.NoError(t, err)
	_, err = cached.ListServices(ctx, "fedex")
	require.NoError(t, err)

	assert.Equal(t, int64(2), mockAPI.ListServicesCalls.Load())
}

func TestCachedClient_EmptyResultNotRetained(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.OnListCarriers = func(ctx context.Context) ([]shipstation.Carrier, error) {
		return []shipstation.Carrier{}, nil
	}
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		carriers, err := cached.ListCarriers(ctx)
		require.NoError(t, err)
		assert.Empty(t, carriers)
	}

	// Every call re-fetched; an empty answer must not occupy the cache
	// for the full TTL.
	assert.Equal(t, int64(3), mockAPI.ListCarriersCalls.Load())
}

func TestCachedClient_ErrorNotCached(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	_, err := cached.ListCarriers(ctx)
	require.Error(t, err)

	mockAPI.SimulateErrors = false

	carriers, err := cached.ListCarriers(ctx)
	require.NoError(t, err)
	assert.Len(t, carriers, 2)
	assert.Equal(t, int64(2), mockAPI.ListCarriersCalls.Load())
}

func TestCachedClient_RatesNeverCached(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	req := &shipstation.RatesRequest{CarrierCode: "stamps_com"}
	for i := 0; i < 3; i++ {
		_, err := cached.GetRates(ctx, req)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), mockAPI.GetRatesCalls.Load())
}

func TestCachedClient_Invalidate(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	_, err := cached.ListCarriers(ctx)
	require.NoError(t, err)

	cached.Invalidate()

	_, err = cached.ListCarriers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mockAPI.ListCarriersCalls.Load())
}

func TestCachedClient_ExpiredEntryRefetched(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	cached := shipstation.NewCachedClient(mockAPI, time.Millisecond)
	ctx := context.Background()

	_, err := cached.ListCarriers(ctx)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = cached.ListCarriers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mockAPI.ListCarriersCalls.Load())
}

func TestCachedClient_ConcurrentAccess(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.SimulateLatency = 5 * time.Millisecond
	cached := shipstation.NewCachedClient(mockAPI, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			carriers, err := cached.ListCarriers(ctx)
			assert.NoError(t, err)
			assert.Len(t, carriers, 2)
		}()
	}
	wg.Wait()

	// Concurrent misses for the same key share one in-flight fetch.
	assert.Equal(t, int64(1), mockAPI.ListCarriersCalls.Load())
}
