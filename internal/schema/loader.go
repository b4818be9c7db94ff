package schema

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"debtr/internal/core"
	"debtr/internal/ledger"
	"debtr/internal/storage"
)

// Source names where the items record was found.
type Source string

const (
	SourceNone       Source = "none"
	SourceSubkeys    Source = "subkeys"
	SourceUnprefixed Source = "unprefixed"
	SourceV0Root     Source = "v0-root"
)

// Loaded is everything recovered from the store.
type Loaded struct {
	// Initialized is false when no items, metadata or currency were stored.
	Initialized bool
	// Degraded is set when a read failed for a reason other than absence.
	// Callers must not overwrite the store with defaults in that case.
	Degraded bool

	Items         []core.Item
	Metadata      core.Metadata
	MetadataFound bool
	Currency      core.Currency
	Locale        core.Locale
	Notifications []core.Notification

	Source  Source
	Variant Variant
	// Dropped counts item entries that could not be recovered.
	Dropped int
	// Migrated lists subkeys rewritten in the current layout during load.
	Migrated []storage.Subkey
}

// Loader reads and normalizes all subkeys.
type Loader struct {
	gw     *storage.Gateway
	logger *slog.Logger
}

func NewLoader(gw *storage.Gateway, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{gw: gw, logger: logger.With("component", "schema")}
}

type readResult struct {
	raw   []byte
	found bool
	err   error
}

func (l *Loader) read(ctx context.Context, sub storage.Subkey) readResult {
	v, err := l.gw.Get(ctx, sub)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return readResult{}
	case err != nil:
		l.logger.WarnContext(ctx, "Failed to read subkey", "subkey", sub, "error", err)
		return readResult{err: err}
	}
	return readResult{raw: []byte(v), found: true}
}

var loadOrder = []storage.Subkey{
	storage.SubkeyItems,
	storage.SubkeyMetadata,
	storage.SubkeyCurrency,
	storage.SubkeyLocale,
	storage.SubkeyNotifs,
}

// Load reads every subkey concurrently and normalizes the result. Legacy
// records are rewritten immediately; a failed rewrite is logged and retried
// on the next load. Load only fails when ctx is done.
func (l *Loader) Load(ctx context.Context) (Loaded, error) {
	reads := make(map[storage.Subkey]readResult, len(loadOrder))
	results := make([]readResult, len(loadOrder))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range loadOrder {
		g.Go(func() error {
			results[i] = l.read(gctx, sub)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}
	for i, sub := range loadOrder {
		reads[sub] = results[i]
	}

	out := Loaded{
		Items:         []core.Item{},
		Currency:      core.DefaultCurrency,
		Locale:        core.DefaultLocale,
		Notifications: []core.Notification{},
		Source:        SourceNone,
		Variant:       VariantCurrent,
	}
	var (
		writeBack  []storage.Write
		droppedRaw []json.RawMessage
	)

	itemsRead, mdRead := reads[storage.SubkeyItems], reads[storage.SubkeyMetadata]
	out.Degraded = itemsRead.err != nil || mdRead.err != nil

	itemsFound := false
	if itemsRead.found {
		if res, err := DecodeItems(itemsRead.raw); err != nil {
			l.logger.WarnContext(ctx, "Malformed items record treated as absent", "error", err)
		} else {
			itemsFound = true
			out.Items, out.Variant, out.Dropped = res.Items, res.Variant, res.Dropped
			out.Source = SourceSubkeys
			switch {
			case res.Dropped > 0:
				// Rewriting now would erase the entries that did not decode.
				l.logger.WarnContext(ctx, "Items record left unmigrated",
					"variant", res.Variant.String(),
					"dropped", res.Dropped)
			case res.Variant.Legacy():
				writeBack = append(writeBack, storage.Write{Subkey: storage.SubkeyItems, Value: out.Items})
			}
			droppedRaw = res.DroppedRaw
		}
	}

	if mdRead.found {
		if md, err := DecodeMetadata(mdRead.raw); err != nil {
			l.logger.WarnContext(ctx, "Malformed metadata record treated as absent", "error", err)
		} else {
			out.Metadata, out.MetadataFound = md, true
			if out.Source == SourceNone {
				out.Source = SourceSubkeys
			}
		}
	}

	if !itemsFound && !out.MetadataFound && !out.Degraded {
		if w, ok := l.recoverLegacy(ctx, &out); ok {
			itemsFound = true
			writeBack = append(writeBack, w...)
		}
	}

	currencyRead := reads[storage.SubkeyCurrency]
	if currencyRead.found {
		out.Currency = core.CurrencyOrDefault(string(currencyRead.raw))
	}
	if r := reads[storage.SubkeyLocale]; r.found {
		out.Locale = core.LocaleOrDefault(string(r.raw))
	}
	if r := reads[storage.SubkeyNotifs]; r.found {
		if ns, err := DecodeNotifications(r.raw); err != nil {
			l.logger.WarnContext(ctx, "Malformed notifications record treated as empty", "error", err)
		} else {
			out.Notifications = ns
		}
	}

	out.Initialized = itemsFound || out.MetadataFound || currencyRead.found

	if len(writeBack) > 0 {
		subs := make([]storage.Subkey, len(writeBack))
		for i, w := range writeBack {
			subs[i] = w.Subkey
		}
		if err := l.gw.SetMany(ctx, writeBack...); err != nil {
			l.logger.WarnContext(ctx, "Failed to write back migrated records", "subkeys", subs, "error", err)
		} else {
			out.Migrated = subs
			l.logger.InfoContext(ctx, "Migrated legacy records",
				"source", out.Source,
				"variant", out.Variant.String(),
				"items", len(out.Items),
				"dropped", out.Dropped,
				"subkeys", subs)
		}
	}
	l.logDropped(ctx, droppedRaw)
	return out, nil
}

// logDropped records entries that could not be decoded so they survive the
// next rewrite of the items record.
func (l *Loader) logDropped(ctx context.Context, entries []json.RawMessage) {
	if len(entries) == 0 {
		return
	}
	raw := make([]string, len(entries))
	for i, e := range entries {
		raw[i] = string(e)
	}
	l.logger.WarnContext(ctx, "Dropped unrecoverable items", "count", len(entries), "entries", raw)
}

// recoverLegacy looks for records left by earlier releases: first the
// unprefixed keys, then the single root record.
func (l *Loader) recoverLegacy(ctx context.Context, out *Loaded) ([]storage.Write, bool) {
	var writes []storage.Write

	rawItems, errItems := l.gw.GetUnprefixed(ctx, storage.SubkeyItems)
	rawMd, errMd := l.gw.GetUnprefixed(ctx, storage.SubkeyMetadata)
	if errItems == nil || errMd == nil {
		found := false
		if errItems == nil {
			if res, err := DecodeItems([]byte(rawItems)); err == nil {
				out.Items, out.Variant, out.Dropped = res.Items, res.Variant, res.Dropped
				l.logDropped(ctx, res.DroppedRaw)
				writes = append(writes, storage.Write{Subkey: storage.SubkeyItems, Value: out.Items})
				found = true
			}
		}
		if errMd == nil {
			if md, err := DecodeMetadata([]byte(rawMd)); err == nil {
				out.Metadata, out.MetadataFound = md, true
				writes = append(writes, storage.Write{Subkey: storage.SubkeyMetadata, Value: md})
				found = true
			}
		}
		if found {
			out.Source = SourceUnprefixed
			return writes, true
		}
	}

	raw, err := l.gw.GetRoot(ctx)
	if err != nil {
		return nil, false
	}
	rec, err := DecodeV0Root([]byte(raw))
	if err != nil {
		l.logger.WarnContext(ctx, "Malformed root record ignored", "error", err)
		return nil, false
	}
	out.Items, out.Variant, out.Dropped = rec.Items.Items, VariantLegacyV0, rec.Items.Dropped
	l.logDropped(ctx, rec.Items.DroppedRaw)
	out.Source = SourceV0Root
	writes = append(writes, storage.Write{Subkey: storage.SubkeyItems, Value: out.Items})
	if rec.CurrMonth >= 0 {
		out.Metadata = core.Metadata{
			AmountLeft: ledger.AmountLeft(out.Items, rec.CurrMonth),
			CurrMonth:  rec.CurrMonth,
		}
		out.MetadataFound = true
		writes = append(writes, storage.Write{Subkey: storage.SubkeyMetadata, Value: out.Metadata})
	}
	return writes, true
}
