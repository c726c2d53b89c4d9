package grid

import (
	"math"
	"math/big"
)

// limitDenominator returns the denominator of the closest rational to v whose
// denominator does not exceed maxDenom. v is taken at its exact binary value,
// then reduced by continued fractions. Ties between the two bounding
// convergents go to the lower-denominator one.
func limitDenominator(v float64, maxDenom int64) int64 {
	exact := new(big.Rat)
	if exact.SetFloat64(v) == nil {
		// ±Inf/NaN never reach here; Build rejects them.
		return 1
	}
	if exact.Denom().Cmp(big.NewInt(maxDenom)) <= 0 {
		return exact.Denom().Int64()
	}

	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n := new(big.Int).Set(exact.Num())
	d := new(big.Int).Set(exact.Denom())
	limit := big.NewInt(maxDenom)

	a := new(big.Int)
	q2 := new(big.Int)
	tmp := new(big.Int)
	for {
		a.Div(n, d) // Euclidean == floor for d > 0
		q2.Mul(a, q1).Add(q2, q0)
		if q2.Cmp(limit) > 0 {
			break
		}
		np1 := new(big.Int).Mul(a, p1)
		np1.Add(np1, p0)
		p0, q0, p1, q1 = p1, q1, np1, new(big.Int).Set(q2)
		tmp.Mul(a, d)
		n, d = d, new(big.Int).Sub(n, tmp)
	}

	// k = (maxDenom - q0) / q1
	k := new(big.Int).Sub(limit, q0)
	k.Div(k, q1)
	b1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	b2 := new(big.Rat).SetFrac(p1, q1)

	e1 := new(big.Rat).Sub(b1, exact)
	e2 := new(big.Rat).Sub(b2, exact)
	if e2.Abs(e2).Cmp(e1.Abs(e1)) <= 0 {
		return b2.Denom().Int64()
	}
	return b1.Denom().Int64()
}

// axisFactor is the lcm of the limited denominators of vals. It returns false
// when the lcm leaves the int64 range.
func axisFactor(vals []float64, maxDenom int64) (int64, bool) {
	f := big.NewInt(1)
	g := new(big.Int)
	for _, v := range vals {
		q := big.NewInt(limitDenominator(v, maxDenom))
		g.GCD(nil, nil, f, q)
		f.Mul(f, q).Div(f, g)
		if !f.IsInt64() || f.Int64() > math.MaxInt32 {
			return 0, false
		}
	}
	return f.Int64(), true
}
