package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint derives the cache key for a tool call from the tool name
// and its argument mapping. The key is stable across JSON key order,
// numeric formatting (5 vs 5.0 vs 5e0), and Unicode composition of
// string values, so semantically identical calls always share one
// recorded response.
func Fingerprint(tool string, args map[string]any) (string, error) {
	// Round-trip through JSON so Go-native values (ints, typed slices,
	// structs) normalize to the same shapes a decoded wire payload has.
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("replay: serializing arguments for %s: %w", tool, err)
	}
	var value any
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &value); err != nil {
			return "", fmt.Errorf("replay: normalizing arguments for %s: %w", tool, err)
		}
	}

	h := sha256.New()
	// Null byte delimiter keeps tool name and arguments from colliding.
	if _, err := io.WriteString(h, tool+"\x00"); err != nil {
		return "", err
	}
	if err := writeCanonical(h, value); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeCanonical emits a deterministic encoding of a decoded JSON value:
// object keys sorted, numbers in shortest form, strings in NFC.
func writeCanonical(w io.Writer, value any) error {
	switch v := value.(type) {
	case nil:
		return writeToken(w, "null")

	case bool:
		return writeToken(w, strconv.FormatBool(v))

	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("replay: non-finite number in arguments")
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return writeToken(w, strconv.FormatInt(int64(v), 10))
		}
		return writeToken(w, strconv.FormatFloat(v, 'g', -1, 64))

	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("replay: invalid number %q: %w", v.String(), err)
		}
		return writeCanonical(w, f)

	case string:
		return writeToken(w, "s"+norm.NFC.String(v))

	case []any:
		if err := writeToken(w, "["); err != nil {
			return err
		}
		for _, elem := range v {
			if err := writeCanonical(w, elem); err != nil {
				return err
			}
		}
		return writeToken(w, "]")

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if err := writeToken(w, "{"); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeToken(w, "k"+norm.NFC.String(k)); err != nil {
				return err
			}
			if err := writeCanonical(w, v[k]); err != nil {
				return err
			}
		}
		return writeToken(w, "}")

	default:
		return fmt.Errorf("replay: unsupported argument type %T", value)
	}
}

func writeToken(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\x00")
	return err
}
