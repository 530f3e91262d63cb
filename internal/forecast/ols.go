package forecast

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var errSingular = errors.New("singular design matrix")

// leastSquares solves min ||X b - y|| by QR decomposition and returns the
// coefficients and the residual vector y - X b.
func leastSquares(rows [][]float64, y []float64) (beta, resid []float64, err error) {
	n := len(rows)
	if n == 0 || n != len(y) {
		return nil, nil, fmt.Errorf("least squares: %d rows for %d targets", n, len(y))
	}
	k := len(rows[0])
	if n <= k {
		return nil, nil, fmt.Errorf("least squares: %d observations for %d parameters", n, k)
	}

	data := make([]float64, 0, n*k)
	for _, r := range rows {
		data = append(data, r...)
	}
	x := mat.NewDense(n, k, data)

	var qr mat.QR
	qr.Factorize(x)

	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, mat.NewVecDense(n, y)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errSingular, err)
	}

	beta = make([]float64, k)
	for i := range beta {
		beta[i] = b.AtVec(i)
	}

	resid = make([]float64, n)
	for i, r := range rows {
		resid[i] = y[i] - floats.Dot(r, beta)
	}
	return beta, resid, nil
}
