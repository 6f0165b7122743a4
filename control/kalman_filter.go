package control

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// KalmanFilter estimates position and velocity of a scalar from noisy position measurements with a
// constant acceleration input model.
type KalmanFilter struct {
	x *mat.VecDense // state: position, velocity
	p *mat.Dense    // covariance

	accelVariance       float64
	measurementVariance float64
}

// NewKalmanFilter returns a filter with the given process (acceleration) and measurement noise
// variances.
func NewKalmanFilter(accelVariance, measurementVariance float64) (*KalmanFilter, error) {
	if accelVariance <= 0 || measurementVariance <= 0 {
		return nil, errors.New("kalman filter noise variances must be positive")
	}
	kf := &KalmanFilter{accelVariance: accelVariance, measurementVariance: measurementVariance}
	kf.Reset(0, 0)
	return kf, nil
}

// Reset sets the state and a unit covariance.
func (kf *KalmanFilter) Reset(position, velocity float64) {
	kf.x = mat.NewVecDense(2, []float64{position, velocity})
	kf.p = mat.NewDense(2, 2, []float64{1, 0, 0, 1})
}

// Predict propagates the state by dt under the known acceleration.
func (kf *KalmanFilter) Predict(dt, acceleration float64) {
	f := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	b := mat.NewVecDense(2, []float64{0.5 * dt * dt, dt})

	var x mat.VecDense
	x.MulVec(f, kf.x)
	x.AddScaledVec(&x, acceleration, b)
	kf.x = &x

	var fp, p mat.Dense
	fp.Mul(f, kf.p)
	p.Mul(&fp, f.T())
	var q mat.Dense
	q.Outer(kf.accelVariance, b, b)
	p.Add(&p, &q)
	kf.p = &p
}

// Update corrects the state with a position measurement.
func (kf *KalmanFilter) Update(measured float64) {
	h := mat.NewDense(1, 2, []float64{1, 0})
	innovation := measured - kf.x.AtVec(0)
	s := kf.p.At(0, 0) + kf.measurementVariance

	var k mat.VecDense
	k.MulVec(kf.p, h.RowView(0))
	k.ScaleVec(1/s, &k)

	kf.x.AddScaledVec(kf.x, innovation, &k)

	var kh, ikh, p mat.Dense
	kh.Outer(1, &k, h.RowView(0))
	ikh.Sub(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), &kh)
	p.Mul(&ikh, kf.p)
	kf.p = &p
}

// Position returns the estimated position.
func (kf *KalmanFilter) Position() float64 {
	return kf.x.AtVec(0)
}

// Velocity returns the estimated velocity.
func (kf *KalmanFilter) Velocity() float64 {
	return kf.x.AtVec(1)
}
