package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/storage"
)

func testServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	s, err := storage.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &Server{Store: s, Log: zap.NewNop()}, s
}

func insertToken(t *testing.T, s *storage.Store, chain model.ChainID, id model.TokenID, owner model.Address) {
	t.Helper()
	tok := model.FullToken{
		Cid:   "bafyabc",
		Owner: owner,
		Fee:   big.NewInt(1000),
		Meta: model.TroutMetadata{
			Name: "",
			Properties: model.TroutProperties{
				Version: model.CurrentVersion,
				Self:    model.TroutID{Chain: chain, Token: id},
			},
		},
	}
	err := s.WithTx(context.Background(), func(tx *storage.Tx) error {
		return tx.InsertTokens(context.Background(), chain, []model.FullToken{tok})
	})
	require.NoError(t, err)
}

func TestHandleListTokens(t *testing.T) {
	srv, store := testServer(t)
	owner := model.Address{1}
	insertToken(t, store, 1, 7, owner)

	req := httptest.NewRequest(http.MethodGet, "/trout/1/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body listResponse[model.TokenForUi]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Result, 1)
	assert.Equal(t, model.TokenID(7), body.Result[0].ID)
}

func TestHandleListTokensRejectsNonNumericChain(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/trout/notachain/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSetNameSucceedsForOwner(t *testing.T) {
	srv, store := testServer(t)
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := model.Address(crypto.PubkeyToAddress(priv.PublicKey))
	insertToken(t, store, 1, 7, owner)

	hash, _, err := apitypes.TypedDataAndHash(nameRequestTypedData(7, "new name"))
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, priv)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"name":"new name","sig":"0x%s"}`, hex.EncodeToString(sig))
	req := httptest.NewRequest(http.MethodPost, "/trout/1/7/name", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleSetNameRejectsWrongSigner(t *testing.T) {
	srv, store := testServer(t)
	owner := model.Address{1}
	insertToken(t, store, 1, 7, owner)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash, _, err := apitypes.TypedDataAndHash(nameRequestTypedData(7, "new name"))
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, other)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"name":"new name","sig":"0x%s"}`, hex.EncodeToString(sig))
	req := httptest.NewRequest(http.MethodPost, "/trout/1/7/name", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleIpfsNotFoundWhenUnpinned(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/ipfs/bafynotpinned", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// nameRequestTypedData mirrors the unexported typed-data builder in
// internal/signing so tests can sign a matching payload without
// exporting that plumbing from the package under test.
func nameRequestTypedData(trout model.TokenID, name string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"NameRequest": {
				{Name: "trout", Type: "uint256"},
				{Name: "name", Type: "string"},
			},
		},
		PrimaryType: "NameRequest",
		Domain: apitypes.TypedDataDomain{
			Name:              "NameRequest",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(23294),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"trout": (*math.HexOrDecimal256)(big.NewInt(int64(trout))),
			"name":  name,
		},
	}
}
