// Package audio groups the audio front end of the speaker encoder:
//
//   - wav: WAVE decoding to mono PCM16 at a fixed rate
//   - resampler: sample-rate and channel conversion of PCM16 streams
//   - fbank: Kaldi-compatible log mel filterbank features
//
// A typical pipeline:
//
//	pcm, err := wav.Loader{SampleRate: 16000}.Load("utt1.wav")
//	ext, err := fbank.New(fbank.DefaultConfig())
//	feats := ext.ExtractFromInt16(pcm)
package audio
