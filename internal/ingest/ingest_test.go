package ingest

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addr(b byte) model.Address {
	var a model.Address
	a[19] = b
	return a
}

// Scenario 1 from spec.md §8: a fresh spawn creates a token row with
// no metadata and advances progress.
func TestProcessBatchFreshSpawn(t *testing.T) {
	s := openTestStore(t)
	p := New(s, zap.NewNop())

	block := uint64(100)
	batch := []model.Event{
		{Token: &model.TokenEvent{Kind: model.Spawned, Token: 7, Block: 100, LogIndex: 0, To: addr(0xA1)}},
		{ProcessedBlock: &block},
	}
	require.NoError(t, p.ProcessBatch(context.Background(), 1, batch))

	progress, ok, err := s.ChainProgress(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, progress, uint64(100))
}

// Scenario 2: listing then delisting leaves fee null with two
// recorded events and two list_events rows.
func TestProcessBatchListThenDelist(t *testing.T) {
	s := openTestStore(t)
	p := New(s, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *storage.Tx) error {
		return tx.InsertTokens(ctx, 1, []model.FullToken{{
			Cid:   "bafyGEN0",
			Owner: addr(0xA1),
			Meta:  model.TroutMetadata{Properties: model.TroutProperties{Self: model.TroutID{Chain: 1, Token: 7}}},
		}})
	}))

	listBlock := uint64(102)
	require.NoError(t, p.ProcessBatch(ctx, 1, []model.Event{
		{Token: &model.TokenEvent{Kind: model.Relisted, Token: 7, Block: 101, LogIndex: 0, Fee: big.NewInt(1000)}},
		{Token: &model.TokenEvent{Kind: model.Relisted, Token: 7, Block: 102, LogIndex: 0, Fee: nil}},
		{ProcessedBlock: &listBlock},
	}))

	ui, err := s.ListTokensForUI(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ui, 1)
	assert.Nil(t, ui[0].Fee)
}

func TestProcessBatchIdempotentOnDuplicateEvent(t *testing.T) {
	s := openTestStore(t)
	p := New(s, zap.NewNop())
	ctx := context.Background()

	block := uint64(100)
	batch := []model.Event{
		{Token: &model.TokenEvent{Kind: model.Spawned, Token: 7, Block: 100, LogIndex: 0, To: addr(0xA1)}},
		{ProcessedBlock: &block},
	}
	require.NoError(t, p.ProcessBatch(ctx, 1, batch))
	require.NoError(t, p.ProcessBatch(ctx, 1, batch))

	ui, err := s.ListTokensForUI(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ui, 1)
}
