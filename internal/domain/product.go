package domain

import "regexp"

const (
	skuMinLength = 3
	skuMaxLength = 50
)

// Допустимый алфавит SKU: буквы, цифры, пробелы и символы #/-():_.
var skuPattern = regexp.MustCompile(`^[\p{L}0-9\s#/\-():_]+$`)

// Category — категория каталога.
type Category struct {
	ID   int64
	Name string
}

// Product — товар каталога с агрегированным рейтингом и набором вариантов.
type Product struct {
	ID          int64
	Name        string
	Description string
	CategoryID  int64
	// Rating — средняя оценка; пересчитывается при каждом новом отзыве.
	Rating float64
	// TimesRated — сколько раз товар был оценён.
	TimesRated int
	Instances  []ProductInstance
}

// ProductInstance — конкретный продаваемый вариант товара (SKU: размер/цвет).
type ProductInstance struct {
	ID        int64
	ProductID int64
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// AbsoluteDiscountMinor — абсолютная скидка, 0 <= скидка <= цена.
	AbsoluteDiscountMinor int64
	// PercentageDiscount — процентная скидка, 0..100.
	PercentageDiscount int
	SKU                string
	Color              string
	Size               string
	// StockQuantity — текущий остаток; не бывает отрицательным.
	StockQuantity int32
}

// Validate проверяет базовые инварианты товара.
func (p *Product) Validate() []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	for i := range p.Instances {
		errs = append(errs, p.Instances[i].Validate()...)
	}
	return errs
}

// Validate проверяет инварианты варианта: цена, скидки, SKU и остаток.
func (pi *ProductInstance) Validate() []error {
	var errs []error

	if pi.PriceMinor <= 0 {
		errs = append(errs, ErrPriceInvalid)
	}
	if pi.AbsoluteDiscountMinor < 0 || pi.AbsoluteDiscountMinor > pi.PriceMinor {
		errs = append(errs, ErrAbsoluteDiscountInvalid)
	}
	if pi.PercentageDiscount < 0 || pi.PercentageDiscount > 100 {
		errs = append(errs, ErrPercentageDiscountInvalid)
	}
	if n := len([]rune(pi.SKU)); n < skuMinLength || n > skuMaxLength {
		errs = append(errs, ErrSKULengthInvalid)
	} else if !skuPattern.MatchString(pi.SKU) {
		errs = append(errs, ErrSKUAlphabetInvalid)
	}
	if pi.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// NextRating вычисляет новое среднее после очередной оценки:
// (rating*timesRated + value) / (timesRated + 1).
func NextRating(rating float64, timesRated int, value int) float64 {
	return (rating*float64(timesRated) + float64(value)) / float64(timesRated+1)
}
