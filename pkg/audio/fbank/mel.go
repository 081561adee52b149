package fbank

import "math"

// hammingWindow is 0.54 - 0.46 cos(2 pi i / (n-1)).
func hammingWindow(n int) []float64 {
	return makeWindow(n, func(x float64) float64 { return 0.54 - 0.46*math.Cos(x) })
}

// poveyWindow is Kaldi's default: a Hann window raised to 0.85.
func poveyWindow(n int) []float64 {
	return makeWindow(n, func(x float64) float64 { return math.Pow(0.5-0.5*math.Cos(x), 0.85) })
}

func makeWindow(n int, f func(x float64) float64) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	step := 2 * math.Pi / float64(n-1)
	for i := range w {
		w[i] = f(step * float64(i))
	}
	return w
}

// hzToMel uses Kaldi's natural-log form, 1127 ln(1 + f/700), which equals
// the HTK 2595 log10 form.
func hzToMel(hz float64) float64 {
	return 1127 * math.Log1p(hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * math.Expm1(mel/1127)
}

// melFilterBank builds numMels triangular filters over the fftSize/2+1
// power-spectrum bins. As in Kaldi, triangles are linear in mel and evaluated
// at each bin's center frequency, so no filter collapses to zero width.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	bins := fftSize/2 + 1
	binHz := float64(sampleRate) / float64(fftSize)
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	delta := (highMel - lowMel) / float64(numMels+1)

	binMel := make([]float64, bins)
	for k := range binMel {
		binMel[k] = hzToMel(binHz * float64(k))
	}

	bank := make([][]float64, numMels)
	for m := range bank {
		left := lowMel + float64(m)*delta
		center := left + delta
		right := center + delta

		f := make([]float64, bins)
		for k, mel := range binMel {
			switch {
			case mel <= left || mel >= right:
			case mel <= center:
				f[k] = (mel - left) / (center - left)
			default:
				f[k] = (right - mel) / (right - center)
			}
		}
		bank[m] = f
	}
	return bank
}
