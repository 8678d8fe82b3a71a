package notifier_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/notifier"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatAlerts(t *testing.T) {
	t.Parallel()

	assert.Empty(t, notifier.FormatAlerts(nil))

	msg := notifier.FormatAlerts([]model.AlertEvent{
		model.PriceChanged("MSI MPG 321URXW", "amazon", d("849.00"), d("799.00")),
		model.FloorReached("MSI MPG 321URXW", "amazon", d("799.00"), d("799.00")),
		model.PriceChanged("Gigabyte <AORUS>", "mediamarkt", d("1000"), d("1100")),
	})

	assert.Contains(t, msg, "📉 <b>MSI MPG 321URXW</b> · Amazon")
	assert.Contains(t, msg, "849.00 € → <b>799.00 €</b> (-50.00 €, -5.9%)")
	assert.Contains(t, msg, "🎯 <b>MSI MPG 321URXW</b> · Amazon")
	assert.Contains(t, msg, "<b>799.00 €</b> ≤ umbral 799.00 €")
	assert.Contains(t, msg, "📈 <b>Gigabyte &lt;AORUS&gt;</b> · MediaMarkt")
	assert.Contains(t, msg, "(+100.00 €, +10.0%)")
}

func TestFormatReport(t *testing.T) {
	t.Parallel()

	res := &model.CycleResult{
		FinishedAt: time.Date(2026, 3, 14, 21, 0, 5, 0, time.UTC),
		Report: []model.ReportEntry{
			{Product: "MSI MPG 321URXW", Source: "amazon", Found: true, Price: d("849.9"), Floor: d("799")},
			{Product: "MSI MPG 321URXW", Source: "pccomponentes", Found: false, Floor: d("799")},
			{Product: "Samsung Odyssey OLED G8", Source: "mediamarkt", Found: true, Price: d("700"), Floor: d("750")},
			{Product: "Samsung Odyssey OLED G8", Source: "coolmod", Found: false, Previous: d("760"), HasPrevious: true, Floor: d("750")},
		},
	}

	msg := notifier.FormatReport(res, time.UTC)

	assert.Contains(t, msg, "📊 <b>Precios actuales (España)</b>")
	assert.Contains(t, msg, "🔹 <b>MSI MPG 321URXW</b> (umbral 799.00 €)")
	assert.Contains(t, msg, "• Amazon: <b>849.90 €</b>\n")
	assert.Contains(t, msg, "• PcComponentes: ⚠️ No encontrado\n")
	assert.Contains(t, msg, "• MediaMarkt: <b>700.00 €</b> 🎯")
	assert.Contains(t, msg, "• coolmod: ⚠️ No encontrado (último 760.00 €)")
	assert.Contains(t, msg, "✅ Actualizado: 14/03 21:00:05")
	assert.NotContains(t, msg, "historial")

	res.SaveError = "disk full"
	assert.Contains(t, notifier.FormatReport(res, time.UTC), "No se pudo guardar el historial")
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()

	msg := notifier.FormatHelp([]model.ProductSpec{
		{Name: "MSI MPG 321URXW", FloorPrice: d("799")},
		{Name: "Gigabyte AORUS FO32U2P", FloorPrice: d("850")},
	})
	assert.Contains(t, msg, "/revisar")
	assert.Contains(t, msg, "• MSI MPG 321URXW (umbral 799.00 €)")
	assert.Contains(t, msg, "• Gigabyte AORUS FO32U2P (umbral 850.00 €)")
}
