// Package metadata packs values larger than one Stripe metadata slot into
// numbered chunks and reads them back.
//
// Stripe accepts at most 50 metadata keys per object, keys up to 40
// characters and values up to 500 characters. A value stored under prefix
// "registration" becomes registration0, registration1, ... Setting a key to
// the empty string removes it at Stripe, which Replace uses to drop stale
// chunks.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Stripe metadata limits.
const (
	MaxKeys        = 50
	MaxKeyLength   = 40
	MaxValueLength = 500
)

var (
	ErrTooLarge   = errors.New("metadata: value does not fit in the remaining keys")
	ErrKeyTooLong = errors.New("metadata: chunk key exceeds 40 characters")
	ErrCorrupt    = errors.New("metadata: chunked value is not valid JSON")
)

// Pack splits value into chunks of at most MaxValueLength characters keyed
// prefix0..prefixN. An empty value packs to an empty map.
func Pack(prefix, value string) (map[string]string, error) {
	out := map[string]string{}
	if value == "" {
		return out, nil
	}
	chunks := split(value, MaxValueLength)
	if len(chunks) > MaxKeys {
		return nil, fmt.Errorf("%w: %d chunks", ErrTooLarge, len(chunks))
	}
	last := prefix + strconv.Itoa(len(chunks)-1)
	if len(last) > MaxKeyLength {
		return nil, fmt.Errorf("%w: %q", ErrKeyTooLong, last)
	}
	for i, c := range chunks {
		out[prefix+strconv.Itoa(i)] = c
	}
	return out, nil
}

// Unpack joins prefix0, prefix1, ... until the first missing or empty chunk.
func Unpack(md map[string]string, prefix string) string {
	var b strings.Builder
	for i := 0; ; i++ {
		v, ok := md[prefix+strconv.Itoa(i)]
		if !ok || v == "" {
			break
		}
		b.WriteString(v)
	}
	return b.String()
}

// Replace returns the metadata update that stores value under prefix on an
// object whose current metadata is current: the new chunks, plus an empty
// string for every old chunk that is no longer used.
func Replace(current map[string]string, prefix, value string) (map[string]string, error) {
	update, err := Pack(prefix, value)
	if err != nil {
		return nil, err
	}
	foreign := 0
	for k, v := range current {
		if v == "" {
			continue
		}
		if !IsChunkKey(k, prefix) {
			foreign++
		}
	}
	if foreign+len(update) > MaxKeys {
		return nil, fmt.Errorf("%w: %d other keys, %d chunks", ErrTooLarge, foreign, len(update))
	}
	for k := range current {
		if IsChunkKey(k, prefix) {
			if _, kept := update[k]; !kept {
				update[k] = ""
			}
		}
	}
	return update, nil
}

// Clear returns the update that deletes every chunk of prefix.
func Clear(current map[string]string, prefix string) map[string]string {
	update := map[string]string{}
	for k := range current {
		if IsChunkKey(k, prefix) {
			update[k] = ""
		}
	}
	return update
}

// IsChunkKey reports whether key is prefix followed by a decimal index.
func IsChunkKey(key, prefix string) bool {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}


// ReplaceJSON is Replace for a string map encoded as JSON.
func ReplaceJSON(current map[string]string, prefix string, fields map[string]string) (map[string]string, error) {
	if len(fields) == 0 {
		return Clear(current, prefix), nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return Replace(current, prefix, string(raw))
}

// UnpackJSON decodes a string map stored with ReplaceJSON. Missing data
// yields an empty map.
func UnpackJSON(md map[string]string, prefix string) (map[string]string, error) {
	out := map[string]string{}
	raw := Unpack(md, prefix)
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return out, nil
}

// split cuts s into pieces of at most n runes without breaking a UTF-8 sequence.
func split(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		if utf8.RuneCountInString(s) <= n {
			out = append(out, s)
			break
		}
		i, count := 0, 0
		for count < n {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			count++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}
