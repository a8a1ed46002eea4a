package merton

// Rating is a coarse credit-rating bucket estimated from leverage.
type Rating string

const (
	RatingAA  Rating = "AA"
	RatingA   Rating = "A"
	RatingBBB Rating = "BBB"
	RatingBB  Rating = "BB"
	RatingB   Rating = "B"
	RatingCCC Rating = "CCC"
)

// EstimateRating maps Merton-implied leverage D/V to a rating bucket.
// It deliberately uses the implied asset value V rather than the book
// approximation E+D, so the bucket reflects the market's view of the
// capital structure. The bucket selects which benchmark spread series
// the analysis is compared against.
func EstimateRating(assetValue, debt float64) Rating {
	if assetValue <= 0 {
		return RatingCCC
	}
	leverage := debt / assetValue
	switch {
	case leverage < 0.20:
		return RatingAA
	case leverage < 0.35:
		return RatingA
	case leverage < 0.50:
		return RatingBBB
	case leverage < 0.65:
		return RatingBB
	case leverage < 0.80:
		return RatingB
	default:
		return RatingCCC
	}
}
