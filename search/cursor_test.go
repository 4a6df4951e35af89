package search

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxtea/xxtea-go/xxtea"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec("secret")

	fields := []string{"created_at", "id"}
	values := []types.FieldValue{"2024-05-01T10:00:00Z", json.Number("42")}

	token, err := codec.Encode(values, fields)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotValues, gotFields, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, fields, gotFields)
	require.Len(t, gotValues, 2)
	assert.Equal(t, "2024-05-01T10:00:00Z", gotValues[0])
	assert.Equal(t, json.Number("42"), gotValues[1])
}

func TestCodec_RoundTrip_PreservesLargeIntegers(t *testing.T) {
	codec := NewCodec("secret")

	// 2^53+1 does not survive a float64 round trip, so numeric sort values
	// must come back as json.Number.
	token, err := codec.Encode([]types.FieldValue{json.Number("9007199254740993")}, []string{"id"})
	require.NoError(t, err)

	gotValues, _, err := codec.Decode(token)
	require.NoError(t, err)
	require.Len(t, gotValues, 1)

	number, ok := gotValues[0].(json.Number)
	require.True(t, ok, "numeric sort value should decode as json.Number, got %T", gotValues[0])
	assert.Equal(t, "9007199254740993", number.String())
}

func TestCodec_RoundTrip_NullAndBoolValues(t *testing.T) {
	codec := NewCodec("secret")

	// Documents missing a sort field produce null sort keys; those must
	// survive the trip so the resume point stays exact.
	values := []types.FieldValue{nil, true, json.Number("7")}
	token, err := codec.Encode(values, []string{"size_bytes", "archived", "id"})
	require.NoError(t, err)

	gotValues, gotFields, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"size_bytes", "archived", "id"}, gotFields)
	require.Len(t, gotValues, 3)
	assert.Nil(t, gotValues[0])
	assert.Equal(t, true, gotValues[1])
	assert.Equal(t, json.Number("7"), gotValues[2])
}

func TestCodec_Decode_RejectsNonBase58(t *testing.T) {
	codec := NewCodec("secret")

	_, _, err := codec.Decode("not base58 at all!!!")
	var malformedErr *MalformedCursorError
	assert.ErrorAs(t, err, &malformedErr)
}

func TestCodec_Decode_RejectsGarbage(t *testing.T) {
	codec := NewCodec("secret")

	// Valid base58, but the payload was never produced by Encode.
	token := base58.Encode([]byte("definitely not an encrypted envelope"))

	_, _, err := codec.Decode(token)
	var malformedErr *MalformedCursorError
	assert.ErrorAs(t, err, &malformedErr)
}

func TestCodec_Decode_RejectsTamperedToken(t *testing.T) {
	codec := NewCodec("secret")

	token, err := codec.Encode([]types.FieldValue{json.Number("42")}, []string{"id"})
	require.NoError(t, err)

	// Flip one character in the middle of the token.
	middle := len(token) / 2
	replacement := byte('2')
	if token[middle] == replacement {
		replacement = '3'
	}
	tampered := token[:middle] + string(replacement) + token[middle+1:]

	_, _, err = codec.Decode(tampered)
	var malformedErr *MalformedCursorError
	assert.ErrorAs(t, err, &malformedErr)
}

func TestCodec_Decode_RejectsWrongKey(t *testing.T) {
	token, err := NewCodec("alpha").Encode([]types.FieldValue{json.Number("1")}, []string{"id"})
	require.NoError(t, err)

	_, _, err = NewCodec("beta").Decode(token)
	var malformedErr *MalformedCursorError
	assert.ErrorAs(t, err, &malformedErr)
}

func TestCodec_Decode_RejectsUnknownVersion(t *testing.T) {
	codec := NewCodec("secret")

	// Forge a structurally valid envelope carrying a future version.
	payload, err := json.Marshal(cursorEnvelope{
		Version: 2,
		Fields:  []string{"id"},
		Values:  []types.FieldValue{json.Number("1")},
	})
	require.NoError(t, err)
	token := base58.Encode(xxtea.Encrypt(payload, []byte("secret")))

	_, _, err = codec.Decode(token)
	var malformedErr *MalformedCursorError
	require.ErrorAs(t, err, &malformedErr)
	assert.Contains(t, err.Error(), "version")
}

func TestCodec_Decode_RejectsFieldValueMismatch(t *testing.T) {
	codec := NewCodec("secret")

	payload, err := json.Marshal(cursorEnvelope{
		Version: cursorVersion,
		Fields:  []string{"created_at", "id"},
		Values:  []types.FieldValue{json.Number("1")},
	})
	require.NoError(t, err)
	token := base58.Encode(xxtea.Encrypt(payload, []byte("secret")))

	_, _, err = codec.Decode(token)
	var malformedErr *MalformedCursorError
	assert.ErrorAs(t, err, &malformedErr)
}

func TestCodec_TokensAreOpaque(t *testing.T) {
	codec := NewCodec("secret")

	token, err := codec.Encode([]types.FieldValue{"2024-05-01T10:00:00Z", json.Number("42")}, []string{"created_at", "id"})
	require.NoError(t, err)

	// The raw sort values must not be readable from the token itself.
	assert.NotContains(t, token, "2024-05-01")
	assert.NotContains(t, token, "created_at")
}
