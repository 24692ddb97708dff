package fees

import (
	"time"

	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

// Breakdown itemizes the fees owed on one lending record.
type Breakdown struct {
	LateFee         float64 `json:"lateFee"`
	DamageFee       float64 `json:"damageFee"`
	ReplacementCost float64 `json:"replacementCost"`
	Total           float64 `json:"total"`
}

// Calculator computes lending fees from static rate tables. It is stateless
// and safe to share.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Ancient books are not lendable (lending period zero), so their late-fee
// rate is unreachable in practice. The rate is kept to match the published
// fee schedule.
var lateFeeRates = map[model.BookKind]float64{
	model.KindGeneral: 0.25,
	model.KindRare:    1.00,
	model.KindAncient: 2.00,
}

var maxLateFees = map[model.BookKind]float64{
	model.KindGeneral: 20.00,
	model.KindRare:    50.00,
	model.KindAncient: 100.00,
}

type conditionPair struct {
	from, to model.Condition
}

var damageFees = map[conditionPair]float64{
	{model.ConditionExcellent, model.ConditionGood}:     5.00,
	{model.ConditionExcellent, model.ConditionFair}:     15.00,
	{model.ConditionExcellent, model.ConditionPoor}:     30.00,
	{model.ConditionExcellent, model.ConditionCritical}: 50.00,
	{model.ConditionGood, model.ConditionFair}:          10.00,
	{model.ConditionGood, model.ConditionPoor}:          25.00,
	{model.ConditionGood, model.ConditionCritical}:      45.00,
	{model.ConditionFair, model.ConditionPoor}:          15.00,
	{model.ConditionFair, model.ConditionCritical}:      35.00,
	{model.ConditionPoor, model.ConditionCritical}:      20.00,
}

var replacementCosts = map[model.BookKind]map[model.Condition]float64{
	model.KindGeneral: {
		model.ConditionExcellent: 30.00,
		model.ConditionGood:      25.00,
		model.ConditionFair:      20.00,
		model.ConditionPoor:      15.00,
		model.ConditionCritical:  10.00,
	},
	model.KindRare: {
		model.ConditionExcellent: 100.00,
		model.ConditionGood:      80.00,
		model.ConditionFair:      60.00,
		model.ConditionPoor:      40.00,
		model.ConditionCritical:  30.00,
	},
	model.KindAncient: {
		model.ConditionExcellent: 500.00,
		model.ConditionGood:      400.00,
		model.ConditionFair:      300.00,
		model.ConditionPoor:      200.00,
		model.ConditionCritical:  150.00,
	},
}

// LateFee returns min(days * rate, cap) for the book kind.
func (c *Calculator) LateFee(kind model.BookKind, daysOverdue int) float64 {
	if daysOverdue <= 0 {
		return 0
	}
	rate, ok := lateFeeRates[kind]
	if !ok {
		rate = lateFeeRates[model.KindGeneral]
	}
	max, ok := maxLateFees[kind]
	if !ok {
		max = maxLateFees[model.KindGeneral]
	}
	fee := float64(daysOverdue) * rate
	if fee > max {
		fee = max
	}
	return fee
}

// DamageFee charges for a condition downgrade observed at return. Returns
// zero when the condition held or improved. Pairs outside the table, such
// as downgrades from a condition that never parsed, also price at zero.
func (c *Calculator) DamageFee(original, current model.Condition) float64 {
	if current.Rank() <= original.Rank() {
		return 0
	}
	return damageFees[conditionPair{original, current}]
}

// ReplacementCost prices a lost or destroyed book. Rare books add their
// appraised value on top of the base cost.
func (c *Calculator) ReplacementCost(book *model.Book) float64 {
	table, ok := replacementCosts[book.Kind]
	if !ok {
		table = replacementCosts[model.KindGeneral]
	}
	cost, ok := table[book.Condition]
	if !ok {
		cost = table[model.ConditionGood]
	}
	if book.Kind == model.KindRare && book.Rare != nil {
		cost += book.Rare.EstimatedValue
	}
	return cost
}

// TotalFees itemizes everything owed on a record. Replacement cost is
// included only when the record is marked Lost or the book is Critical.
func (c *Calculator) TotalFees(record *model.LendingRecord, book *model.Book, originalCondition model.Condition, now time.Time) Breakdown {
	var out Breakdown

	if record.IsOverdue(now) {
		out.LateFee = c.LateFee(book.Kind, record.DaysOverdue(now))
	}
	if originalCondition != "" && originalCondition != book.Condition {
		out.DamageFee = c.DamageFee(originalCondition, book.Condition)
	}
	if record.Status == model.LendingLost || book.Condition == model.ConditionCritical {
		out.ReplacementCost = c.ReplacementCost(book)
	}

	out.Total = out.LateFee + out.DamageFee + out.ReplacementCost
	return out
}

// MembershipFee is linear per month with long-term discounts: 10% off for a
// year or more, 5% off for six months or more.
func (c *Calculator) MembershipFee(membership model.MembershipType, months int) (float64, error) {
	var monthly float64
	switch membership {
	case model.MembershipStandard:
		monthly = 5.00
	case model.MembershipPremium:
		monthly = 10.00
	default:
		return 0, errors.Wrap(errs.ErrValidation, "invalid membership type")
	}

	fee := monthly * float64(months)
	switch {
	case months >= 12:
		return fee * 0.9, nil
	case months >= 6:
		return fee * 0.95, nil
	default:
		return fee, nil
	}
}

// ApplyDiscount reduces a fee by a percentage in [0, 100].
func (c *Calculator) ApplyDiscount(fee, discountPercentage float64) (float64, error) {
	if discountPercentage < 0 || discountPercentage > 100 {
		return 0, errors.Wrap(errs.ErrValidation, "discount percentage must be between 0 and 100")
	}
	return fee - fee*(discountPercentage/100), nil
}

// AcademicDiscount reduces fees by the scholar's standing. Other roles pay
// the full fee.
func (c *Calculator) AcademicDiscount(fee float64, user *model.User) float64 {
	if user.Role != model.RoleScholar || user.Scholar == nil {
		return fee
	}
	switch user.Scholar.AcademicLevel {
	case model.LevelDistinguished:
		return fee * 0.7
	case model.LevelProfessor:
		return fee * 0.8
	case model.LevelGraduate:
		return fee * 0.9
	default:
		return fee
	}
}
