package ipfsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrin/nftrout-indexer/internal/model"
)

func TestDagGetDecodesSlashLinkCids(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dag/get", r.URL.Path)
		assert.Equal(t, "bafyTEST", r.URL.Query().Get("arg"))
		w.Write([]byte(`{
			"description": "a trout",
			"image": {"/": "bafyIMAGE"},
			"metadata.json": {"/": "bafyMETA"},
			"name": "trout #1",
			"properties": {
				"version": 3,
				"generations": [{"/": "bafyGEN0"}],
				"left": null,
				"right": null,
				"self": {"chainId": 23294, "tokenId": 1},
				"attributes": {"genesis": true, "santa": false}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client())
	var meta model.TroutMetadata
	require.NoError(t, c.DagGet(context.Background(), model.Cid("bafyTEST"), &meta))

	assert.Equal(t, model.Cid("bafyIMAGE"), meta.Image)
	assert.Equal(t, model.Cid("bafyMETA"), meta.MetadataCid)
	assert.Equal(t, uint32(3), meta.Properties.Version)
	assert.Equal(t, model.Cid("bafyGEN0"), meta.Properties.Generations[0])
	assert.True(t, meta.Properties.Attributes.Genesis)
}

func TestDagGetPropagatesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client())
	var meta model.TroutMetadata
	err := c.DagGet(context.Background(), model.Cid("bafyTEST"), &meta)
	require.Error(t, err)
}
