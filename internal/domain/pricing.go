package domain

import "math"

// DefaultBasePrice is the baseline visit price when the request names none.
const DefaultBasePrice = 75.0

// Charge is an extra line item added on top of the base price.
type Charge struct {
	Description string  `json:"description" bson:"description"`
	Amount      float64 `json:"amount" bson:"amount"`
}

// Pricing holds the price breakdown of a booking.
type Pricing struct {
	BasePrice         float64  `json:"basePrice" bson:"basePrice"`
	DistanceFee       float64  `json:"distanceFee" bson:"distanceFee"`
	UrgencyFee        float64  `json:"urgencyFee" bson:"urgencyFee"`
	AdditionalCharges []Charge `json:"additionalCharges" bson:"additionalCharges"`
	Discount          float64  `json:"discount" bson:"discount"`
	TotalPrice        float64  `json:"totalPrice" bson:"totalPrice"`
}

// Total computes basePrice + distanceFee + urgencyFee + sum(additionalCharges) - discount,
// rounded to cents.
func (p Pricing) Total() float64 {
	total := p.BasePrice + p.DistanceFee + p.UrgencyFee
	for _, c := range p.AdditionalCharges {
		total += c.Amount
	}
	total -= p.Discount
	return roundCents(total)
}

// inputsEqual compares every field that feeds into the total.
func (p Pricing) inputsEqual(o Pricing) bool {
	if p.BasePrice != o.BasePrice || p.DistanceFee != o.DistanceFee ||
		p.UrgencyFee != o.UrgencyFee || p.Discount != o.Discount ||
		len(p.AdditionalCharges) != len(o.AdditionalCharges) {
		return false
	}
	for i := range p.AdditionalCharges {
		if p.AdditionalCharges[i].Amount != o.AdditionalCharges[i].Amount {
			return false
		}
	}
	return true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
