package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

const (
	MsgAck     = "⏳ Buscando precios... (puede tardar unos segundos por tienda)"
	MsgBusy    = "⏳ Ya hay una revisión en curso. Recibirás el resultado cuando termine."
	MsgFailure = "⚠️ Error al obtener precios. Revisa los logs."
)

var sourceLabels = map[string]string{
	"amazon":        "Amazon",
	"pccomponentes": "PcComponentes",
	"mediamarkt":    "MediaMarkt",
}

// SourceLabel returns the display name of a source id.
func SourceLabel(id string) string {
	if l, ok := sourceLabels[id]; ok {
		return l
	}
	return id
}

func euros(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

// FormatAlerts renders alert events as one message. It returns "" for no events.
func FormatAlerts(events []model.AlertEvent) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("🔔 <b>Alertas de precio</b>\n")
	for _, e := range events {
		b.WriteString("\n")
		name := html.EscapeString(e.Product)
		store := html.EscapeString(SourceLabel(e.Source))
		switch e.Kind {
		case model.AlertPriceChanged:
			icon := "📉"
			if e.New.GreaterThan(e.Old) {
				icon = "📈"
			}
			delta := e.New.Sub(e.Old)
			sign := ""
			if delta.IsPositive() {
				sign = "+"
			}
			pct := delta.Div(e.Old).Mul(decimal.NewFromInt(100))
			fmt.Fprintf(&b, "%s <b>%s</b> · %s\n   %s → <b>%s</b> (%s%s, %s%s%%)\n",
				icon, name, store, euros(e.Old), euros(e.New),
				sign, euros(delta), sign, pct.StringFixed(1))
		case model.AlertFloorReached:
			fmt.Fprintf(&b, "🎯 <b>%s</b> · %s\n   <b>%s</b> ≤ umbral %s\n",
				name, store, euros(e.New), euros(e.Floor))
		}
	}
	return b.String()
}

// FormatReport renders the full per-product, per-source result of a cycle.
func FormatReport(res *model.CycleResult, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.WriteString("📊 <b>Precios actuales (España)</b>\n")

	current := ""
	for _, e := range res.Report {
		if e.Product != current {
			current = e.Product
			fmt.Fprintf(&b, "\n🔹 <b>%s</b> (umbral %s)\n", html.EscapeString(e.Product), euros(e.Floor))
		}
		store := html.EscapeString(SourceLabel(e.Source))
		if !e.Found {
			if e.HasPrevious {
				fmt.Fprintf(&b, "   • %s: ⚠️ No encontrado (último %s)\n", store, euros(e.Previous))
			} else {
				fmt.Fprintf(&b, "   • %s: ⚠️ No encontrado\n", store)
			}
			continue
		}
		mark := ""
		if e.Price.LessThanOrEqual(e.Floor) {
			mark = " 🎯"
		}
		fmt.Fprintf(&b, "   • %s: <b>%s</b>%s\n", store, euros(e.Price), mark)
	}

	fmt.Fprintf(&b, "\n✅ Actualizado: %s", res.FinishedAt.In(loc).Format("02/01 15:04:05"))
	if res.SaveError != "" {
		b.WriteString("\n⚠️ No se pudo guardar el historial.")
	}
	return b.String()
}

// FormatHelp renders the /start and /help text listing the catalog.
func FormatHelp(catalog []model.ProductSpec) string {
	var b strings.Builder
	b.WriteString("👋 ¡Hola! Usa /revisar para obtener los precios actuales de:\n")
	for _, p := range catalog {
		fmt.Fprintf(&b, "• %s (umbral %s)\n", html.EscapeString(p.Name), euros(p.FloorPrice))
	}
	b.WriteString("\nComandos: /revisar, /check, /precios, /help")
	return b.String()
}
