package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/escrin/nftrout-indexer/internal/model"
)

func ids(xs ...uint32) []model.TokenID {
	out := make([]model.TokenID, len(xs))
	for i, x := range xs {
		out[i] = model.TokenID(x)
	}
	return out
}

func TestGapsBoundaries(t *testing.T) {
	assert.Empty(t, gaps(nil, 0))
	assert.Empty(t, gaps(ids(1, 2, 3), 3))
	assert.Equal(t, ids(1, 3), gaps(ids(2), 3))
	assert.Equal(t, ids(1, 2, 3), gaps(nil, 3))
}
