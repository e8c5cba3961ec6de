package storage

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrin/nftrout-indexer/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)
	var version int
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestInsertTokensIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	tok := model.FullToken{
		Cid:   "bafyone",
		Owner: model.Address{1},
		Fee:   big.NewInt(500),
		Meta: model.TroutMetadata{
			Properties: model.TroutProperties{Version: model.CurrentVersion, Self: model.TroutID{Chain: 1, Token: 5}},
		},
	}
	insert := func() error {
		return s.WithTx(context.Background(), func(tx *Tx) error {
			return tx.InsertTokens(context.Background(), 1, []model.FullToken{tok})
		})
	}
	require.NoError(t, insert())
	require.NoError(t, insert())

	ids, err := s.TokenIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TokenID{5}, ids)
}

func TestIsCidPinnedFalseUntilMarked(t *testing.T) {
	s := openTestStore(t)
	tok := model.FullToken{
		Cid:   "bafytwo",
		Owner: model.Address{2},
		Meta: model.TroutMetadata{
			Properties: model.TroutProperties{Version: model.CurrentVersion, Self: model.TroutID{Chain: 1, Token: 9}},
		},
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertTokens(context.Background(), 1, []model.FullToken{tok})
	}))

	pinned, err := s.IsCidPinned(context.Background(), "bafytwo")
	require.NoError(t, err)
	assert.False(t, pinned)

	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.MarkPinned(context.Background(), []model.Cid{"bafytwo"})
	}))

	pinned, err = s.IsCidPinned(context.Background(), "bafytwo")
	require.NoError(t, err)
	assert.True(t, pinned)
}

func TestTokenOwnerNotFound(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.TokenOwner(context.Background(), model.TroutID{Chain: 1, Token: 999})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenOwnerReflectsUpdateOwners(t *testing.T) {
	s := openTestStore(t)
	tok := model.FullToken{
		Cid:   "bafythree",
		Owner: model.Address{3},
		Meta: model.TroutMetadata{
			Properties: model.TroutProperties{Version: model.CurrentVersion, Self: model.TroutID{Chain: 1, Token: 3}},
		},
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertTokens(context.Background(), 1, []model.FullToken{tok})
	}))

	newOwner := model.Address{9}
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.UpdateOwners(context.Background(), 1, map[model.TokenID]model.Address{3: newOwner})
	}))

	owner, ok, err := s.TokenOwner(context.Background(), model.TroutID{Chain: 1, Token: 3})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newOwner, owner)
}
