package domain

import "time"

// Variant описывает складскую позицию товара в конкретном размере и цвете.
type Variant struct {
	// Size — размер (например, "M", "42").
	Size string
	// Color — цвет варианта, сравнивается с учётом регистра.
	Color string
	// Stock — доступный остаток для этой пары (size, color).
	Stock int32
}

// Product агрегирует карточку товара и остатки по вариантам.
type Product struct {
	ID          string
	Number      int64
	Name        string
	Description string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	CategoryID string
	Images     []string
	Variants   []Variant
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TotalStock возвращает суммарный остаток по всем вариантам.
// Значение вычисляется, а не хранится.
func (p *Product) TotalStock() int32 {
	var total int32
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// FindVariant ищет вариант по точному совпадению (size, color).
// Возвращает индекс в Variants или -1, если такого варианта нет.
func (p *Product) FindVariant(size, color string) int {
	for i, v := range p.Variants {
		if v.Size == size && v.Color == color {
			return i
		}
	}
	return -1
}

// ValidateInvariants проверяет базовые инварианты карточки товара.
// Уникальность (size, color) — проверяемый инвариант, а не жёсткое ограничение схемы.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}

	seen := make(map[[2]string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if v.Size == "" || v.Color == "" {
			errs = append(errs, ErrVariantKeyRequired)
		}
		if v.Stock < 0 {
			errs = append(errs, ErrVariantStockNegative)
		}
		key := [2]string{v.Size, v.Color}
		if seen[key] {
			errs = append(errs, ErrVariantDuplicate)
		}
		seen[key] = true
	}

	return errs
}
