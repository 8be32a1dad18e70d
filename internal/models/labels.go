package models

import "fmt"

// Ledger line-item labels as written by the sales side
const (
	labelCuota     = "%s - Cuota %d"
	labelMora      = "%s - Cuota %d (Mora)"
	labelPazYSalvo = "%s - Paz y salvo"
)

// InstallmentLabel returns the ledger label that settles installment n
func InstallmentLabel(product string, n int) string {
	return fmt.Sprintf(labelCuota, product, n)
}

// MoraLabel returns the ledger label of a late top-up for installment n
func MoraLabel(product string, n int) string {
	return fmt.Sprintf(labelMora, product, n)
}

// PazYSalvoLabel returns the ledger label that closes the whole agreement
func PazYSalvoLabel(product string) string {
	return fmt.Sprintf(labelPazYSalvo, product)
}
