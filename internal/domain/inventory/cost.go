// Package inventory servicios de dominio puros sobre cantidades y costos.
package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo promedio ponderado tras una entrada.
// nuevo = ((onHand * avg) + (incoming * unitCost)) / (onHand + incoming)
// Si el resultado no tiene unidades devuelve 0.
func WeightedAverageCost(onHand int64, avg decimal.Decimal, incoming int64, unitCost decimal.Decimal) decimal.Decimal {
	total := onHand + incoming
	if total <= 0 {
		return decimal.Zero
	}
	num := decimal.NewFromInt(onHand).Mul(avg).Add(decimal.NewFromInt(incoming).Mul(unitCost))
	return num.Div(decimal.NewFromInt(total))
}
