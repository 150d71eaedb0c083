// SPDX-License-Identifier: Apache-2.0

package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/value"
)

func TestEqual(t *testing.T) {
	assert.True(t, value.Int(1).Equal(value.Int(1)))
	assert.False(t, value.Int(1).Equal(value.Int(2)))
	assert.False(t, value.Int(1).Equal(value.BigInt(1)))
	assert.True(t, value.Text("a").Equal(value.Text("a")))
	assert.True(t, value.Null.Equal(value.SqlVal{Kind: value.KindNull}))
}

func TestRefAndToOwnedRoundTrip(t *testing.T) {
	orig := value.Text("hello")
	ref := orig.Ref()
	require.Equal(t, value.KindText, ref.Kind)
	require.NotNil(t, ref.Text)
	assert.Equal(t, "hello", *ref.Text)
	assert.True(t, orig.Equal(ref.ToOwned()))

	blob := value.Blob([]byte{1, 2, 3})
	blobRef := blob.Ref()
	owned := blobRef.ToOwned()
	assert.Equal(t, []byte{1, 2, 3}, owned.BlobVal)

	n := value.Int(7)
	nRef := n.Ref()
	assert.True(t, n.Equal(nRef.ToOwned()))
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	encoded, err := value.JSONEncode(payload{Name: "widget"})
	require.NoError(t, err)
	require.Equal(t, value.KindJSON, encoded.Kind)

	var decoded payload
	require.NoError(t, value.JSONRoundTrip(encoded.Ref(), &decoded))
	assert.Equal(t, "widget", decoded.Name)

	var bad payload
	err = value.JSONRoundTrip(value.Int(1).Ref(), &bad)
	var convErr value.CannotConvertSqlVal
	require.ErrorAs(t, err, &convErr)
}

func TestEnumToTextAndFromText(t *testing.T) {
	variants := []string{"red", "green", "blue"}
	v := value.EnumToText("green")

	got, err := value.EnumFromText("Color", v.Ref(), variants)
	require.NoError(t, err)
	assert.Equal(t, "green", got)

	_, err = value.EnumFromText("Color", value.Text("purple").Ref(), variants)
	var unknown value.UnknownEnumVariant
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "purple", unknown.Variant)

	_, err = value.EnumFromText("Color", value.Int(1).Ref(), variants)
	var convErr value.CannotConvertSqlVal
	require.ErrorAs(t, err, &convErr)
}
