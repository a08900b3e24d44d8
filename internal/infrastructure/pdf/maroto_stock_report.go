// Package pdf genera el reporte de inventario en PDF.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + alcance     │  Fecha de generación         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: SKU | En stock | Stock bajo | Agotados | Valor     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: SKU | Producto | Disp. | Res. | Estado | Valor       │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWarn    = &props.Color{Red: 196, Green: 120, Blue: 0}
	colorDanger  = &props.Color{Red: 180, Green: 30, Blue: 30}
	colorOK      = &props.Color{Red: 20, Green: 120, Blue: 60}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoReportGenerator implementa inventory.StockReportGenerator usando Maroto v2.
type MarotoReportGenerator struct{}

var _ inventory.StockReportGenerator = (*MarotoReportGenerator)(nil)

// NewMarotoReportGenerator construye el generador.
func NewMarotoReportGenerator() *MarotoReportGenerator { return &MarotoReportGenerator{} }

// GenerateStockReport genera el PDF y devuelve sus bytes.
func (g *MarotoReportGenerator) GenerateStockReport(_ context.Context, report inventory.StockReport) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Reporte de inventario", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRows(report.Summary)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	if len(report.Items) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("Sin SKU en el alcance seleccionado.", props.Text{Size: 8, Align: align.Center, Top: 2, Color: colorGray}),
		)))
	}
	m.AddRows(tableDetailRows(report.Items)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(report inventory.StockReport) core.Row {
	scope := "Todo el marketplace"
	if report.Scope != domaininv.ScopeAll {
		scope = "Vendedor: " + report.Scope
	}
	return row.New(16).Add(
		col.New(8).Add(
			text.New("REPORTE DE INVENTARIO", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(scope, props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("Generado: "+report.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 3, Color: colorGray,
			}),
		),
	)
}

func summaryRows(s domaininv.Summary) []core.Row {
	cell := func(label, value string, c *props.Color) core.Col {
		return col.New(2).Add(
			text.New(label, props.Text{Size: 7, Align: align.Center, Color: colorGray, Top: 1}),
			text.New(value, props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Center, Color: c, Top: 5}),
		)
	}
	return []core.Row{
		row.New(14).Add(
			cell("SKU activos", fmt.Sprint(s.Total), colorPrimary),
			cell("En stock", fmt.Sprint(s.InStock), colorOK),
			cell("Stock bajo", fmt.Sprint(s.LowStock), colorWarn),
			cell("Agotados", fmt.Sprint(s.OutOfStock), colorDanger),
			col.New(4).Add(
				text.New("Valor del inventario", props.Text{Size: 7, Align: align.Right, Color: colorGray, Top: 1, Right: 1}),
				text.New("$"+formatMoney(s.TotalValue), props.Text{
					Style: fontstyle.Bold, Size: 11, Align: align.Right, Color: colorPrimary, Top: 5, Right: 1,
				}),
			),
		),
	}
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("SKU", 2, align.Left),
		h("Producto", 4, align.Left),
		h("Disp.", 1, align.Right),
		h("Res.", 1, align.Right),
		h("Estado", 2, align.Center),
		h("Valor", 2, align.Right),
	)
}

func tableDetailRows(items []dto.InventoryItem) []core.Row {
	rows := make([]core.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(it.SKU, props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(4).Add(text.New(nonEmpty(it.ProductName, it.ProductID), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(1).Add(text.New(fmt.Sprint(it.Available), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(fmt.Sprint(it.Reserved), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(statusLabel(it.Status), props.Text{
				Size: 7.5, Align: align.Center, Top: 1, Color: statusColor(it.Status),
			})),
			col.New(2).Add(text.New("$"+formatMoney(it.StockValue), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func statusLabel(s entity.StockStatus) string {
	switch s {
	case entity.StatusInStock:
		return "En stock"
	case entity.StatusLowStock:
		return "Stock bajo"
	default:
		return "Agotado"
	}
}

func statusColor(s entity.StockStatus) *props.Color {
	switch s {
	case entity.StatusInStock:
		return colorOK
	case entity.StatusLowStock:
		return colorWarn
	default:
		return colorDanger
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formatea con puntos de miles y coma decimal.
// Ej: 25000 → "25.000,00", 1234.5 → "1.234,50"
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + "," + frac
}
