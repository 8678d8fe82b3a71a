package alert_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSentinel/internal/alert"
	"PriceSentinel/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEngine_Evaluate(t *testing.T) {
	t.Parallel()

	floor := d("799.00")

	tests := []struct {
		name      string
		mode      alert.FloorMode
		prior     string
		obs       model.Observation
		wantKinds []model.AlertKind
	}{
		{
			name: "first seen above floor",
			obs:  model.Found(d("900"), "json-ld"),
		},
		{
			name:      "first seen at floor",
			obs:       model.Found(d("799.00"), "json-ld"),
			wantKinds: []model.AlertKind{model.AlertFloorReached},
		},
		{
			name:  "unchanged above floor",
			prior: "849.00",
			obs:   model.Found(d("849.00"), "selector"),
		},
		{
			name:  "unchanged with different scale",
			prior: "849",
			obs:   model.Found(d("849.00"), "selector"),
		},
		{
			name:      "changed above floor",
			prior:     "900",
			obs:       model.Found(d("849.00"), "selector"),
			wantKinds: []model.AlertKind{model.AlertPriceChanged},
		},
		{
			name:      "price rise",
			prior:     "849",
			obs:       model.Found(d("899"), "selector"),
			wantKinds: []model.AlertKind{model.AlertPriceChanged},
		},
		{
			name:      "drop onto floor",
			prior:     "849.00",
			obs:       model.Found(d("799.00"), "split-price"),
			wantKinds: []model.AlertKind{model.AlertPriceChanged, model.AlertFloorReached},
		},
		{
			name:      "unchanged below floor repeats floor",
			prior:     "750",
			obs:       model.Found(d("750"), "json-ld"),
			wantKinds: []model.AlertKind{model.AlertFloorReached},
		},
		{
			name:  "unavailable with prior",
			prior: "900",
			obs:   model.Unavailable(),
		},
		{
			name:  "unavailable with prior below floor",
			prior: "700",
			obs:   model.Unavailable(),
		},
		{
			name: "unavailable without prior",
			obs:  model.Unavailable(),
		},
		{
			name:  "on crossing: sustained below floor is silent",
			mode:  alert.FloorOnCrossing,
			prior: "750",
			obs:   model.Found(d("750"), "json-ld"),
		},
		{
			name:      "on crossing: further drop below floor only changes",
			mode:      alert.FloorOnCrossing,
			prior:     "750",
			obs:       model.Found(d("700"), "json-ld"),
			wantKinds: []model.AlertKind{model.AlertPriceChanged},
		},
		{
			name:      "on crossing: crossing emits both",
			mode:      alert.FloorOnCrossing,
			prior:     "849",
			obs:       model.Found(d("799"), "json-ld"),
			wantKinds: []model.AlertKind{model.AlertPriceChanged, model.AlertFloorReached},
		},
		{
			name:      "on crossing: first seen below floor",
			mode:      alert.FloorOnCrossing,
			obs:       model.Found(d("700"), "json-ld"),
			wantKinds: []model.AlertKind{model.AlertFloorReached},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := alert.Input{Product: "Monitor", Source: "amazon", Floor: floor, Observation: tt.obs}
			if tt.prior != "" {
				in.Prior = d(tt.prior)
				in.HasPrior = true
			}

			events := alert.NewEngine(tt.mode).Evaluate(in)

			kinds := make([]model.AlertKind, 0, len(events))
			for _, e := range events {
				kinds = append(kinds, e.Kind)
				assert.Equal(t, "Monitor", e.Product)
				assert.Equal(t, "amazon", e.Source)
			}
			if len(tt.wantKinds) == 0 {
				assert.Empty(t, kinds)
				return
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}
}

func TestEngine_ChangePayload(t *testing.T) {
	t.Parallel()

	events := alert.Engine{}.Evaluate(alert.Input{
		Product:     "Monitor",
		Source:      "pccomponentes",
		Floor:       d("799.00"),
		Prior:       d("849.00"),
		HasPrior:    true,
		Observation: model.Found(d("799.00"), "json-ld"),
	})
	require.Len(t, events, 2)

	changed, floor := events[0], events[1]
	assert.True(t, d("849").Equal(changed.Old))
	assert.True(t, d("799").Equal(changed.New))
	assert.True(t, d("799").Equal(floor.New))
	assert.True(t, d("799").Equal(floor.Floor))
}

func TestEngine_StepIsIdempotent(t *testing.T) {
	t.Parallel()

	e := alert.NewEngine(alert.FloorEveryCycle)
	product := model.ProductSpec{Name: "Monitor", FloorPrice: d("700")}
	snap := model.Snapshot{}
	key := model.HistoryKey{Product: "Monitor", Source: "amazon"}

	assert.Empty(t, e.Step(snap, product, "amazon", model.Found(d("849"), "json-ld")))
	assert.True(t, d("849").Equal(snap[key]))

	assert.Empty(t, e.Step(snap, product, "amazon", model.Found(d("849"), "json-ld")))

	events := e.Step(snap, product, "amazon", model.Found(d("829"), "json-ld"))
	require.Len(t, events, 1)
	assert.Equal(t, model.AlertPriceChanged, events[0].Kind)
	assert.True(t, d("829").Equal(snap[key]))
}

func TestEngine_StepUnavailableKeepsHistory(t *testing.T) {
	t.Parallel()

	e := alert.NewEngine(alert.FloorEveryCycle)
	product := model.ProductSpec{Name: "Monitor", FloorPrice: d("900")}
	key := model.HistoryKey{Product: "Monitor", Source: "mediamarkt"}
	snap := model.Snapshot{key: d("950")}

	assert.Empty(t, e.Step(snap, product, "mediamarkt", model.Unavailable()))
	assert.True(t, d("950").Equal(snap[key]))

	assert.Empty(t, e.Step(snap, product, "amazon", model.Unavailable()))
	_, ok := snap[model.HistoryKey{Product: "Monitor", Source: "amazon"}]
	assert.False(t, ok)
}

func TestParseFloorMode(t *testing.T) {
	t.Parallel()

	m, err := alert.ParseFloorMode("")
	require.NoError(t, err)
	assert.Equal(t, alert.FloorEveryCycle, m)

	m, err = alert.ParseFloorMode("on_crossing")
	require.NoError(t, err)
	assert.Equal(t, alert.FloorOnCrossing, m)

	_, err = alert.ParseFloorMode("hourly")
	require.Error(t, err)
}
