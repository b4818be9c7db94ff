package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debtr/internal/core"
	"debtr/internal/services"
)

type staticSource struct{ snap *services.Snapshot }

func (s staticSource) Snapshot() *services.Snapshot { return s.snap }

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestLedgerGauges(t *testing.T) {
	snap := &services.Snapshot{
		Loaded:     true,
		CurrMonth:  2,
		AmountLeft: core.MustMoney("42.50"),
		Currency:   "EUR",
		Items: []services.ItemView{
			{Item: core.Item{ID: "a"}, IsVisible: true},
			{Item: core.Item{ID: "b"}, IsVisible: false},
			{Item: core.Item{ID: "c"}, IsVisible: true},
		},
		Version: 7,
	}
	m := New()
	m.WatchLedger(staticSource{snap})

	left := family(t, m, "debtr_ledger_amount_left")
	require.NotNil(t, left)
	assert.InDelta(t, 42.5, left.GetMetric()[0].GetGauge().GetValue(), 0.001)
	assert.Equal(t, "EUR", left.GetMetric()[0].GetLabel()[0].GetValue())

	items := family(t, m, "debtr_ledger_items")
	require.NotNil(t, items)
	byVisible := map[string]float64{}
	for _, metric := range items.GetMetric() {
		byVisible[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"true": 2, "false": 1}, byVisible)

	version := family(t, m, "debtr_ledger_version")
	require.NotNil(t, version)
	assert.Equal(t, 7.0, version.GetMetric()[0].GetCounter().GetValue())
}

func TestLedgerGaugesSkippedBeforeLoad(t *testing.T) {
	m := New()
	m.WatchLedger(staticSource{&services.Snapshot{}})
	assert.Nil(t, family(t, m, "debtr_ledger_amount_left"))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, id := range []string{"one", "two"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	requests := family(t, m, "debtr_http_requests_total")
	require.NotNil(t, requests)
	require.Len(t, requests.GetMetric(), 1, "ids must not become labels")
	labels := map[string]string{}
	for _, l := range requests.GetMetric()[0].GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "GET /api/items/{id}", labels["route"])
	assert.Equal(t, "404", labels["code"])
	assert.Equal(t, 2.0, requests.GetMetric()[0].GetCounter().GetValue())
}

func TestSchedulerCountsOutcomes(t *testing.T) {
	m := New()
	fail := true
	sched := m.Scheduler(services.SchedulerFunc(func(ctx context.Context, intent services.Intent) error {
		if fail {
			return errors.New("broker down")
		}
		return nil
	}))

	require.Error(t, sched.ScheduleOrCancel(context.Background(), services.Intent{Kind: services.IntentSchedule}))
	fail = false
	require.NoError(t, sched.ScheduleOrCancel(context.Background(), services.Intent{Kind: services.IntentCancel}))

	intents := family(t, m, "debtr_reminders_intents_total")
	require.NotNil(t, intents)
	assert.Len(t, intents.GetMetric(), 2)
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
