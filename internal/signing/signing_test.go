package signing

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrin/nftrout-indexer/internal/model"
)

func TestRecoverReturnsSigner(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := model.Address(crypto.PubkeyToAddress(priv.PublicKey))

	hash, _, err := apitypes.TypedDataAndHash(typedData(42, "new name"))
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, priv)
	require.NoError(t, err)

	got, err := Recover(42, "new name", sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverRejectsWrongLengthSignature(t *testing.T) {
	_, err := Recover(1, "x", []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRecoverDiffersOnTamperedName(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash, _, err := apitypes.TypedDataAndHash(typedData(42, "original"))
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, priv)
	require.NoError(t, err)

	signer := model.Address(crypto.PubkeyToAddress(priv.PublicKey))
	got, err := Recover(42, "tampered", sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer, got)
}
