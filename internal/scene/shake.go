package scene

import "gonum.org/v1/gonum/spatial/r3"

const (
	shakeFrames    = 15
	shakeMinEnergy = 0.005
)

// ShakeDetector recognizes a shaken device from one camera position per
// frame. It sums the acceleration magnitude over a sliding window and fires
// when the total crosses the threshold, then starts over with an empty
// window so a single shake fires once.
type ShakeDetector struct {
	position r3.Vec
	velocity r3.Vec
	primed   int
	window   []float64
}

// Observe records the camera position of the current frame and reports
// whether a shake was detected.
func (d *ShakeDetector) Observe(p r3.Vec) bool {
	prevVelocity := d.velocity
	d.velocity = r3.Sub(p, d.position)
	d.position = p
	acc := r3.Sub(d.velocity, prevVelocity)

	// The first two samples are measured against the zero vector.
	if d.primed < 2 {
		d.primed++
		return false
	}

	d.window = append(d.window, r3.Norm(acc))
	if len(d.window) < shakeFrames {
		return false
	}
	var energy float64
	for _, a := range d.window {
		energy += a
	}
	if energy > shakeMinEnergy*shakeFrames {
		d.window = d.window[:0]
		return true
	}
	d.window = d.window[1:]
	return false
}
