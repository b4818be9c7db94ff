package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debtr/internal/core"
)

func TestDecodeItemsVariants(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		variant   Variant
		months    core.Months
		desc      string
		amount    string
		dropped   int
		wantItems int
	}{
		{
			name:      "current",
			raw:       `[{"id":"a","description":"Gym","amount":30,"months":[5,1],"isPaid":true,"notification":null}]`,
			variant:   VariantCurrent,
			months:    core.Months{1, 5},
			desc:      "Gym",
			amount:    "30.00",
			wantItems: 1,
		},
		{
			name:      "legacy month objects",
			raw:       `[{"id":"a","description":"Tax","amount":12.5,"months":[{"id":3,"name":"April"}],"isPaid":false}]`,
			variant:   VariantLegacyMonths,
			months:    core.Months{3},
			desc:      "Tax",
			amount:    "12.50",
			wantItems: 1,
		},
		{
			name:      "mixed month forms",
			raw:       `[{"id":"a","description":"Tax","amount":1,"months":[0,{"id":6,"name":"July"},0]}]`,
			variant:   VariantLegacyMonths,
			months:    core.Months{0, 6},
			desc:      "Tax",
			amount:    "1.00",
			wantItems: 1,
		},
		{
			name:      "first release",
			raw:       `[{"id":1584023423423,"desc":"Rent","price":700,"months":[],"isPaid":false,"isVisible":true}]`,
			variant:   VariantLegacyV0,
			months:    core.Months{},
			desc:      "Rent",
			amount:    "700.00",
			wantItems: 1,
		},
		{
			name:      "unrecoverable entries dropped",
			raw:       `[{"id":"a","description":"Ok","amount":1,"months":[]},{"id":"b","description":"","amount":1},{"id":"c","description":"Neg","amount":-4},"junk",{"id":"d","description":"Bad months","amount":1,"months":[12]}]`,
			variant:   VariantCurrent,
			months:    core.Months{},
			desc:      "Ok",
			amount:    "1.00",
			dropped:   4,
			wantItems: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DecodeItems([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.variant, res.Variant)
			assert.Equal(t, tt.dropped, res.Dropped)
			require.Len(t, res.Items, tt.wantItems)
			it := res.Items[0]
			assert.True(t, tt.months.Equal(it.Months), "months %v", it.Months)
			assert.Equal(t, tt.desc, it.Description)
			assert.Equal(t, tt.amount, it.Amount.String())
		})
	}
}

func TestDecodeItemsRejectsNonArray(t *testing.T) {
	for _, raw := range []string{`{}`, `not json`, ``, `"[]"`} {
		_, err := DecodeItems([]byte(raw))
		assert.ErrorIs(t, err, ErrNotArray, raw)
	}
}

func TestV0NumericIDIsKept(t *testing.T) {
	res, err := DecodeItems([]byte(`[{"id":1584023423423,"desc":"Rent","price":7,"months":[]}]`))
	require.NoError(t, err)
	assert.Equal(t, core.ItemID("1584023423423"), res.Items[0].ID)
}

func TestBrokenNotificationKeepsItem(t *testing.T) {
	res, err := DecodeItems([]byte(`[{"id":"a","description":"Gym","amount":30,"months":[],"notification":{"id":"n","date":"yesterday"}}]`))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].Notification)

	res, err = DecodeItems([]byte(`[{"id":"a","description":"Gym","amount":30,"months":[],"notification":{"id":"n","date":"2024-01-10T09:00:00.000Z"}}]`))
	require.NoError(t, err)
	require.NotNil(t, res.Items[0].Notification)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), res.Items[0].Notification.Date.UTC())
}

func TestNormalizeMonthsIsIdempotent(t *testing.T) {
	inputs := []string{`[]`, `[3]`, `[{"id":3,"name":"April"}]`, `[11,0,{"id":5,"name":"June"},0]`}
	for _, in := range inputs {
		var entries []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(in), &entries))
		first, _, err := NormalizeMonths(entries)
		require.NoError(t, err, in)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)
		var again []json.RawMessage
		require.NoError(t, json.Unmarshal(encoded, &again))
		second, legacy, err := NormalizeMonths(again)
		require.NoError(t, err)
		assert.False(t, legacy)
		assert.Equal(t, first, second, in)
	}
}

func TestNormalizeMonthsOutOfRange(t *testing.T) {
	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`[2,14]`), &entries))
	months, _, err := NormalizeMonths(entries)
	require.NoError(t, err)
	assert.Equal(t, core.Months{2}, months)

	require.NoError(t, json.Unmarshal([]byte(`[14]`), &entries))
	_, _, err = NormalizeMonths(entries)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	require.NoError(t, json.Unmarshal([]byte(`[{"name":"May"}]`), &entries))
	_, _, err = NormalizeMonths(entries)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestDecodeMetadata(t *testing.T) {
	md, err := DecodeMetadata([]byte(`{"amountLeft":12.345,"currMonth":4}`))
	require.NoError(t, err)
	assert.Equal(t, "12.35", md.AmountLeft.String())
	assert.Equal(t, 4, md.CurrMonth)
	assert.Zero(t, md.CurrYear)

	md, err = DecodeMetadata([]byte(`{"amountLeft":"3","currMonth":0,"currYear":2024}`))
	require.NoError(t, err)
	assert.Equal(t, 2024, md.CurrYear)

	for _, raw := range []string{`{"currMonth":12}`, `[]`, `null`, `{"amountLeft":"x"}`} {
		_, err := DecodeMetadata([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestDecodeNotifications(t *testing.T) {
	ns, err := DecodeNotifications([]byte(`[{"id":"a","date":"2024-02-01T10:00:00Z"},{"id":"","date":"2024-02-01T10:00:00Z"},{"id":"c"}]`))
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "a", ns[0].ID)

	_, err = DecodeNotifications([]byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeV0Root(t *testing.T) {
	rec, err := DecodeV0Root([]byte(`{"items":[{"id":1,"desc":"Rent","price":700,"months":[],"isPaid":true,"isVisible":true}],"currMonth":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrMonth)
	require.Len(t, rec.Items.Items, 1)
	assert.True(t, rec.Items.Items[0].IsPaid)

	rec, err = DecodeV0Root([]byte(`{"items":null,"currMonth":-1}`))
	require.NoError(t, err)
	assert.Equal(t, -1, rec.CurrMonth)
	assert.Empty(t, rec.Items.Items)
}
