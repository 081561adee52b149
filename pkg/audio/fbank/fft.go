package fbank

import "math"

// fftPlan holds the bit-reversal order and twiddle factors for one
// power-of-two transform size, so per-frame transforms do no trig.
type fftPlan struct {
	n   int
	rev []int
	cos []float64 // cos(-2*pi*k/n), k < n/2
	sin []float64
}

func newFFTPlan(n int) *fftPlan {
	p := &fftPlan{
		n:   n,
		rev: make([]int, n),
		cos: make([]float64, n/2),
		sin: make([]float64, n/2),
	}
	bits := 0
	for 1<<bits < n {
		bits++
	}
	for i := range p.rev {
		r := 0
		for b := 0; b < bits; b++ {
			r |= (i >> b & 1) << (bits - 1 - b)
		}
		p.rev[i] = r
	}
	for k := range p.cos {
		a := -2 * math.Pi * float64(k) / float64(n)
		p.cos[k] = math.Cos(a)
		p.sin[k] = math.Sin(a)
	}
	return p
}

// transform runs an in-place radix-2 decimation-in-time FFT. re and im must
// both have length p.n.
func (p *fftPlan) transform(re, im []float64) {
	n := p.n
	for i, r := range p.rev {
		if i < r {
			re[i], re[r] = re[r], re[i]
			im[i], im[r] = im[r], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		stride := n / size
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				wr, wi := p.cos[k*stride], p.sin[k*stride]
				u, v := start+k, start+k+half
				xr := wr*re[v] - wi*im[v]
				xi := wr*im[v] + wi*re[v]
				re[v], im[v] = re[u]-xr, im[u]-xi
				re[u] += xr
				im[u] += xi
			}
		}
	}
}
