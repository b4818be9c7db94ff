package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Subkey names one logical record under the namespace.
type Subkey string

const (
	SubkeyItems    Subkey = "items"
	SubkeyMetadata Subkey = "metadata"
	SubkeyLocale   Subkey = "locale"
	SubkeyCurrency Subkey = "currency"
	SubkeyNotifs   Subkey = "notifs"
)

// DefaultNamespace is the key prefix shared by every record.
const DefaultNamespace = "MPT_DATA"

// Write is one pending subkey write. Values of string kind are stored bare,
// everything else as JSON.
type Write struct {
	Subkey Subkey
	Value  any
}

// WriteError reports which subkeys failed to persist. It is never fatal:
// in-memory state stays authoritative and the next write retries.
type WriteError struct {
	Failed map[Subkey]error
}

func (e *WriteError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return fmt.Sprintf("persist %s failed", strings.Join(keys, ", "))
}

func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Gateway translates subkeys to namespaced keys and values to their
// serialized form.
type Gateway struct {
	kv        KV
	namespace string
}

func NewGateway(kv KV, namespace string) *Gateway {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Gateway{kv: kv, namespace: namespace}
}

// Key returns the store key of a subkey, e.g. "MPT_DATA_items".
func (g *Gateway) Key(sub Subkey) string {
	return g.namespace + "_" + string(sub)
}

// Get returns the raw value of a subkey, or ErrNotFound.
func (g *Gateway) Get(ctx context.Context, sub Subkey) (string, error) {
	return g.kv.Get(ctx, g.Key(sub))
}

// GetRoot returns the value stored under the bare namespace key, where the
// earliest releases kept the whole ledger as one record.
func (g *Gateway) GetRoot(ctx context.Context) (string, error) {
	return g.kv.Get(ctx, g.namespace)
}

// GetUnprefixed returns the value stored under the bare subkey name. An
// early writer left records there without the namespace.
func (g *Gateway) GetUnprefixed(ctx context.Context, sub Subkey) (string, error) {
	return g.kv.Get(ctx, string(sub))
}

// Namespace returns the key prefix.
func (g *Gateway) Namespace() string { return g.namespace }

// Set persists a single subkey.
func (g *Gateway) Set(ctx context.Context, sub Subkey, value any) error {
	return g.SetMany(ctx, Write{Subkey: sub, Value: value})
}

// ErrNotAttempted marks a subkey skipped because an earlier one in the same
// write failed.
var ErrNotAttempted = errors.New("not attempted after earlier failure")

// SetMany persists several subkeys as one logical write. With a Batch store
// the write is atomic. Otherwise subkeys are written in the given order and
// the first failure stops the write, so a later subkey never lands without
// the ones before it. Returns *WriteError on any failure.
func (g *Gateway) SetMany(ctx context.Context, writes ...Write) error {
	failed := map[Subkey]error{}
	entries := make([]Entry, 0, len(writes))
	for _, w := range writes {
		raw, err := encode(w.Value)
		if err != nil {
			failed[w.Subkey] = fmt.Errorf("encode %s: %w", w.Subkey, err)
			continue
		}
		entries = append(entries, Entry{Key: g.Key(w.Subkey), Value: raw})
	}
	if len(failed) > 0 {
		for _, w := range writes {
			if _, ok := failed[w.Subkey]; !ok {
				failed[w.Subkey] = ErrNotAttempted
			}
		}
		return &WriteError{Failed: failed}
	}

	if batch, ok := g.kv.(Batch); ok && len(entries) > 1 {
		if err := batch.SetMany(ctx, entries); err != nil {
			for _, w := range writes {
				failed[w.Subkey] = err
			}
		}
	} else {
		for i, e := range entries {
			err := g.kv.Set(ctx, e.Key, e.Value)
			if err == nil {
				continue
			}
			failed[writes[i].Subkey] = err
			for _, rest := range writes[i+1:] {
				failed[rest.Subkey] = ErrNotAttempted
			}
			break
		}
	}

	if len(failed) > 0 {
		return &WriteError{Failed: failed}
	}
	return nil
}

// IsWriteError reports whether err carries a non-fatal persistence failure.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

func encode(v any) (string, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
