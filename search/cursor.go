package search

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/xxtea/xxtea-go/xxtea"
)

// cursorVersion identifies the token layout.
const cursorVersion = 1

// cursorEnvelope is the serialized form of a cursor: the sort values of the
// last returned document plus the field names that produced them. Carrying the
// field names inside the token lets incompatibility be detected from the token
// alone.
type cursorEnvelope struct {
	Version int                `json:"v"`
	Fields  []string           `json:"f"`
	Values  []types.FieldValue `json:"s"`
}

// Codec encrypts and decodes opaque pagination cursors. The encryption is
// obfuscation to keep tokens opaque at the API boundary, not a security
// boundary.
type Codec struct {
	key string
}

func NewCodec(key string) *Codec {
	return &Codec{
		key: key,
	}
}

// Encode serializes the sort values and their field names into an opaque token.
func (c *Codec) Encode(values []types.FieldValue, fields []string) (string, error) {
	envelope := cursorEnvelope{
		Version: cursorVersion,
		Fields:  fields,
		Values:  values,
	}

	// Serialize the envelope to JSON
	jsonData, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("error encoding cursor: %w", err)
	}

	// Encrypt the JSON data using the XXTEA algorithm
	encryptedBytes := xxtea.Encrypt(jsonData, []byte(c.key))

	// Encode the encrypted bytes to a base58 string
	return base58.Encode(encryptedBytes), nil
}

// Decode recovers the sort values and field names from a token. Numeric values
// come back as json.Number so integer sort keys survive the round trip intact.
func (c *Codec) Decode(token string) ([]types.FieldValue, []string, error) {
	// Decode the base58 string to get the encrypted bytes
	decoded := base58.Decode(token)
	if len(decoded) == 0 {
		return nil, nil, &MalformedCursorError{cause: fmt.Errorf("token is not base58")}
	}

	// Decrypt the JSON data using the XXTEA algorithm
	decryptedBytes := xxtea.Decrypt(decoded, []byte(c.key))
	if len(decryptedBytes) == 0 {
		return nil, nil, &MalformedCursorError{cause: fmt.Errorf("token failed decryption")}
	}

	var envelope cursorEnvelope
	decoder := json.NewDecoder(bytes.NewReader(decryptedBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, nil, &MalformedCursorError{cause: err}
	}

	if envelope.Version != cursorVersion {
		return nil, nil, &MalformedCursorError{cause: fmt.Errorf("unsupported cursor version %d", envelope.Version)}
	}

	if len(envelope.Values) != len(envelope.Fields) {
		return nil, nil, &MalformedCursorError{cause: fmt.Errorf("cursor carries %d values for %d fields", len(envelope.Values), len(envelope.Fields))}
	}

	return envelope.Values, envelope.Fields, nil
}
