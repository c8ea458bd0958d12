package handlers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type discountUpdateInput struct {
	Price           *decimal.Decimal
	DiscountEnabled *bool
	DiscountPrice   *decimal.Decimal
}

type discountUpdateResult struct {
	Price            decimal.Decimal
	DiscountPrice    *decimal.Decimal
	SetPrice         bool
	SetDiscountPrice bool
	ClearDiscount    bool
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price must be greater than 0")
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("price must have at most two decimals")
	}
	return nil
}

func validateDiscountFields(price decimal.Decimal, discountPrice *decimal.Decimal) error {
	if err := validatePrice(price); err != nil {
		return err
	}
	if discountPrice == nil {
		return nil
	}
	if !discountPrice.IsPositive() {
		return fmt.Errorf("discountPrice must be greater than 0")
	}
	if !discountPrice.Equal(discountPrice.Round(2)) {
		return fmt.Errorf("discountPrice must have at most two decimals")
	}
	if !discountPrice.LessThan(price) {
		return fmt.Errorf("discountPrice must be less than price")
	}
	return nil
}

// resolveDiscountUpdate merges a partial price update into the stored values
// and checks the result. Disabling the discount clears it.
func resolveDiscountUpdate(existingPrice decimal.Decimal, existingDiscount *decimal.Decimal, input discountUpdateInput) (discountUpdateResult, error) {
	result := discountUpdateResult{
		Price:         existingPrice,
		DiscountPrice: existingDiscount,
	}

	if input.Price != nil {
		result.Price = *input.Price
		result.SetPrice = true
	}

	if input.DiscountEnabled != nil && !*input.DiscountEnabled {
		result.DiscountPrice = nil
		result.ClearDiscount = true
	} else if input.DiscountPrice != nil {
		discount := *input.DiscountPrice
		result.DiscountPrice = &discount
		result.SetDiscountPrice = true
	} else if input.DiscountEnabled != nil && *input.DiscountEnabled && existingDiscount == nil {
		return discountUpdateResult{}, fmt.Errorf("discountPrice is required when discountEnabled is true")
	}

	if err := validateDiscountFields(result.Price, result.DiscountPrice); err != nil {
		return discountUpdateResult{}, err
	}
	return result, nil
}
