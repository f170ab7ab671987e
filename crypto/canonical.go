package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
)

// Canonicalize re-encodes an arbitrary JSON value into the protocol's
// canonical form: object keys sorted lexicographically at every depth,
// arrays kept in their original order, no insignificant whitespace, UTF-8
// throughout. It is the single JCS-style function hashing, signing and
// verification all share.
//
// v may be a Go value encodable by encoding/json, or a json.RawMessage /
// []byte already holding JSON text.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := toRawJSON(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("crypto: canonicalize decode: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toRawJSON(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case json.RawMessage:
		return []byte(t), nil
	case []byte:
		return t, nil
	default:
		return json.Marshal(v)
	}
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		// Amounts are always encoded as decimal strings; any bare numeric
		// literal surviving this far is an integer count (nonce, timestamp,
		// version) and is written without a fractional part.
		n, ok := new(big.Int).SetString(val.String(), 10)
		if !ok {
			return fmt.Errorf("crypto: canonicalize: non-integer numeric literal %q", val.String())
		}
		buf.WriteString(n.String())
	case string:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEncoded, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyEncoded)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("crypto: canonicalize: unsupported type %T", v)
	}
	return nil
}
