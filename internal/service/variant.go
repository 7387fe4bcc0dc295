// internal/service/variant.go
package service

import "github.com/brightline/outreach-backend/internal/model"

// PickVariant selects a variant by cumulative-weight draw. roll must be in
// [0, 100); inactive variants are skipped. When the roll lands past the sum
// of active weights the caller falls back to the campaign's base template,
// so weights summing below 100 leave the remainder to the base template.
func PickVariant(variants []model.Variant, roll int) *model.Variant {
	cumulative := 0
	for i := range variants {
		if variants[i].Status != model.VariantActive {
			continue
		}
		cumulative += variants[i].Distribution
		if roll < cumulative {
			return &variants[i]
		}
	}
	return nil
}
