package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// DeterministicHash computes the canonical hash of a payload: SHA-256 over the
// canonical JSON form, truncated to length hex characters. Two payloads that are
// semantically identical (same keys and values, any map ordering) always produce
// the same hash, in any process.
func DeterministicHash(payload map[string]any, length int) (string, error) {
	if length < MinHashLength {
		length = DefaultHashLength
	}

	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	digest := hex.EncodeToString(sum[:])

	if length > len(digest) {
		length = len(digest)
	}
	return digest[:length], nil
}

// MarshalCanonical produces the canonical JSON form used for hashing: object keys
// recursively sorted, no whitespace, no HTML escaping, scalars serialized with
// encoding/json semantics. This is the only serialization that may be used for
// key derivation.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	case []any:
		return marshalCanonicalArray(buf, val)
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return marshalCanonicalScalar(buf, val)
	default:
		// Uncommon payload values (structs, typed maps) round-trip through
		// encoding/json so nested keys still get sorted.
		return marshalCanonicalIndirect(buf, val)
	}
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func marshalCanonicalArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

// marshalCanonicalScalar serializes a scalar without HTML escaping or a trailing newline.
func marshalCanonicalScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// json.Encoder appends '\n'; canonical form has no whitespace.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// marshalCanonicalIndirect normalizes an arbitrary value through a JSON round trip
// and re-canonicalizes the result.
func marshalCanonicalIndirect(buf *bytes.Buffer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	return marshalCanonical(buf, normalized)
}
