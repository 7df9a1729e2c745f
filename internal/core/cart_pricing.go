package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Rounding selects the rounding direction for discount allocation and for
// tax rows whose master does not carry its own method.
type Rounding string

const (
	RoundingFloor Rounding = "Floor"
	RoundingHalf  Rounding = "Round"
	RoundingCeil  Rounding = "Ceil"
)

// RoundTo rounds d to the given number of decimal digits with the chosen
// direction. Floor rounds toward negative infinity and Ceil toward positive
// infinity so that negative (return) amounts behave symmetrically.
func RoundTo(d decimal.Decimal, digits int32, method Rounding) decimal.Decimal {
	switch method {
	case RoundingCeil:
		return d.RoundCeil(digits)
	case RoundingHalf:
		return d.Round(digits)
	default:
		return d.RoundFloor(digits)
	}
}

// Recompute runs the full pricing pipeline over the cart in order: line
// amounts, subtotal-discount allocation, taxes, sales rollup, balance. It is
// called after every successful state-machine handler. The taxes map must
// cover every tax code present on non-cancelled lines.
func (c *Cart) Recompute(taxes map[string]TaxMaster, rounding Rounding) error {
	c.recomputeLineAmounts()
	if err := c.allocateSubtotalDiscounts(rounding); err != nil {
		return err
	}
	if err := c.computeTaxes(taxes); err != nil {
		return err
	}
	c.rollupSales()
	return nil
}

// recomputeLineAmounts applies amount = unit_price × quantity − Σ line
// discounts for every line. Cancelled lines keep a zero amount.
func (c *Cart) recomputeLineAmounts() {
	for i := range c.LineItems {
		line := &c.LineItems[i]
		if line.IsCancelled {
			line.Amount = decimal.Zero
			line.DiscountsAllocated = nil
			continue
		}
		line.Amount = line.GrossAmount().Sub(line.LineDiscountTotal())
	}
}

// allocatableLines returns indexes of lines eligible for subtotal-discount
// allocation: non-cancelled and not discount-restricted.
func (c *Cart) allocatableLines() []int {
	var idx []int
	for i := range c.LineItems {
		l := &c.LineItems[i]
		if !l.IsCancelled && !l.IsDiscountRestricted {
			idx = append(idx, i)
		}
	}
	return idx
}

// allocateSubtotalDiscounts distributes each subtotal discount across
// eligible lines proportionally by line amount, then pushes any rounding
// remainder onto the largest lines one unit at a time until the allocated
// sum equals the discount exactly.
func (c *Cart) allocateSubtotalDiscounts(rounding Rounding) error {
	for i := range c.LineItems {
		c.LineItems[i].DiscountsAllocated = nil
	}
	if len(c.SubtotalDiscounts) == 0 {
		return nil
	}

	eligible := c.allocatableLines()
	if len(eligible) == 0 {
		return ErrDiscountAllocation.Withf("no line accepts a discount")
	}

	subtotal := decimal.Zero
	for _, i := range eligible {
		subtotal = subtotal.Add(c.LineItems[i].Amount)
	}
	if !subtotal.IsPositive() {
		return ErrDiscountAllocation.Withf("discountable subtotal is %s", subtotal)
	}

	for di := range c.SubtotalDiscounts {
		d := &c.SubtotalDiscounts[di]
		if d.Type == DiscountTypePercentage {
			d.Amount = RoundTo(subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)), 0, rounding)
		} else {
			d.Amount = d.Value
		}

		allocated := make(map[int]decimal.Decimal, len(eligible))
		sum := decimal.Zero
		for _, i := range eligible {
			share := d.Amount.Mul(c.LineItems[i].Amount).Div(subtotal)
			a := RoundTo(share, 0, rounding)
			allocated[i] = a
			sum = sum.Add(a)
		}

		// Remainder goes to the largest lines, one currency unit at a time.
		byAmount := make([]int, len(eligible))
		copy(byAmount, eligible)
		sort.SliceStable(byAmount, func(a, b int) bool {
			return c.LineItems[byAmount[a]].Amount.GreaterThan(c.LineItems[byAmount[b]].Amount)
		})

		remainder := d.Amount.Sub(sum)
		unit := decimal.NewFromInt(1)
		if remainder.IsNegative() {
			unit = unit.Neg()
		}
		for guard := 0; !remainder.IsZero(); guard++ {
			if guard > len(byAmount)*1000 {
				return ErrDiscountAllocation.Withf("remainder %s not distributable", remainder)
			}
			i := byAmount[guard%len(byAmount)]
			next := allocated[i].Add(unit)
			// An allocation can never exceed its line amount or drop below zero.
			if next.GreaterThan(c.LineItems[i].Amount) || next.IsNegative() {
				continue
			}
			allocated[i] = next
			remainder = remainder.Sub(unit)
		}

		for _, i := range eligible {
			if allocated[i].IsZero() {
				continue
			}
			c.LineItems[i].DiscountsAllocated = append(c.LineItems[i].DiscountsAllocated, Discount{
				SeqNo:  d.SeqNo,
				Type:   d.Type,
				Value:  d.Value,
				Amount: allocated[i],
				Detail: d.Detail,
			})
		}
	}
	return nil
}

// computeTaxes rebuilds the tax rows. Target amounts are line amounts after
// subtotal-discount allocation. External tax accumulates into the balance;
// internal tax is carved out of tax-inclusive amounts and only reported.
func (c *Cart) computeTaxes(taxes map[string]TaxMaster) error {
	type target struct {
		amount decimal.Decimal
		qty    int
	}
	targets := map[string]*target{}
	var order []string
	for i := range c.LineItems {
		l := &c.LineItems[i]
		if l.IsCancelled {
			continue
		}
		t, ok := targets[l.TaxCode]
		if !ok {
			t = &target{}
			targets[l.TaxCode] = t
			order = append(order, l.TaxCode)
		}
		t.amount = t.amount.Add(l.Amount).Sub(l.AllocatedTotal())
		t.qty += l.Quantity
	}

	c.Taxes = nil
	hundred := decimal.NewFromInt(100)
	for _, code := range order {
		master, ok := taxes[code]
		if !ok {
			return ErrTaxNotFound.Withf("tax code %s", code)
		}
		t := targets[code]

		var amount decimal.Decimal
		if master.TaxType == TaxTypeInternal {
			// tax = target × rate / (100 + rate), target being tax-inclusive
			amount = t.amount.Mul(master.Rate).Div(hundred.Add(master.Rate))
		} else {
			amount = t.amount.Mul(master.Rate).Div(hundred)
		}
		amount = RoundTo(amount, int32(master.RoundDigit), Rounding(master.RoundMethod))

		c.Taxes = append(c.Taxes, TaxResult{
			TaxNo:          master.TaxNo,
			TaxCode:        master.TaxCode,
			TaxType:        master.TaxType,
			TaxName:        master.TaxName,
			TaxAmount:      amount,
			TargetAmount:   t.amount,
			TargetQuantity: t.qty,
		})
	}
	return nil
}

// rollupSales recomputes the sales summary and the outstanding balance.
func (c *Cart) rollupSales() {
	var (
		lineTotal     = decimal.Zero
		lineDiscounts = decimal.Zero
		quantity      int
	)
	for i := range c.LineItems {
		l := &c.LineItems[i]
		if l.IsCancelled {
			continue
		}
		lineTotal = lineTotal.Add(l.Amount)
		lineDiscounts = lineDiscounts.Add(l.LineDiscountTotal())
		quantity += l.Quantity
	}

	subtotalDiscounts := decimal.Zero
	for _, d := range c.SubtotalDiscounts {
		subtotalDiscounts = subtotalDiscounts.Add(d.Amount)
	}

	externalTax := decimal.Zero
	internalTax := decimal.Zero
	for _, t := range c.Taxes {
		if t.TaxType == TaxTypeInternal {
			internalTax = internalTax.Add(t.TaxAmount)
		} else {
			externalTax = externalTax.Add(t.TaxAmount)
		}
	}

	change := decimal.Zero
	for _, p := range c.Payments {
		change = change.Add(p.ChangeAmount)
	}

	c.Sales.TotalAmount = lineTotal.Sub(subtotalDiscounts)
	c.Sales.TaxAmount = externalTax
	c.Sales.InternalTaxAmount = internalTax
	c.Sales.TotalAmountWithTax = c.Sales.TotalAmount.Add(externalTax)
	c.Sales.TotalDiscountAmount = subtotalDiscounts.Add(lineDiscounts)
	c.Sales.TotalQuantity = quantity
	c.Sales.ChangeAmount = change
	c.Balance = c.Sales.TotalAmountWithTax.Sub(c.PaymentTotal())
}
