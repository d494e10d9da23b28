package domain

import "testing"

func TestProduct_TotalStock(t *testing.T) {
	product := Product{
		Variants: []Variant{
			{Size: "M", Color: "black", Stock: 5},
			{Size: "L", Color: "black", Stock: 3},
			{Size: "M", Color: "white", Stock: 0},
		},
	}

	if got := product.TotalStock(); got != 8 {
		t.Fatalf("expected total stock 8, got %d", got)
	}
}

func TestProduct_FindVariant(t *testing.T) {
	product := Product{
		Variants: []Variant{
			{Size: "M", Color: "black", Stock: 5},
			{Size: "L", Color: "white", Stock: 2},
		},
	}

	if idx := product.FindVariant("L", "white"); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	if idx := product.FindVariant("M", "white"); idx != -1 {
		t.Errorf("expected -1 for missing variant, got %d", idx)
	}
	// Сравнение регистрозависимое.
	if idx := product.FindVariant("m", "black"); idx != -1 {
		t.Errorf("expected -1 for case mismatch, got %d", idx)
	}
}

func TestProduct_ValidateInvariants_DuplicateVariant(t *testing.T) {
	product := Product{
		Name:       "T-Shirt",
		PriceMinor: 2900,
		Variants: []Variant{
			{Size: "M", Color: "black", Stock: 5},
			{Size: "M", Color: "black", Stock: 2},
		},
	}

	errs := product.ValidateInvariants()
	if !containsErr(errs, ErrVariantDuplicate) {
		t.Fatalf("expected ErrVariantDuplicate, got %v", errs)
	}
}

func TestProduct_ValidateInvariants_NegativeStock(t *testing.T) {
	product := Product{
		Name:       "T-Shirt",
		PriceMinor: 2900,
		Variants:   []Variant{{Size: "M", Color: "black", Stock: -1}},
	}

	errs := product.ValidateInvariants()
	if !containsErr(errs, ErrVariantStockNegative) {
		t.Fatalf("expected ErrVariantStockNegative, got %v", errs)
	}
}
