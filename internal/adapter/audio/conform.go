package audio

// Conform converts a PCM buffer to the target sample rate and channel
// count: multi-channel input is averaged down to mono, then linearly
// resampled. Mono-to-stereo duplication is supported for completeness but
// the pipeline only ever conforms toward canonical mono.
func Conform(in *PCMBuffer, targetRate, targetChannels int) *PCMBuffer {
	if in.SampleRate == targetRate && in.Channels == targetChannels {
		return in
	}

	mono := downmix(in)
	resampled := resample(mono, targetRate)

	if targetChannels <= 1 {
		return resampled
	}
	out := &PCMBuffer{SampleRate: targetRate, Channels: targetChannels}
	out.Samples = make([]int16, len(resampled.Samples)*targetChannels)
	for i, s := range resampled.Samples {
		for ch := 0; ch < targetChannels; ch++ {
			out.Samples[i*targetChannels+ch] = s
		}
	}
	return out
}

func downmix(in *PCMBuffer) *PCMBuffer {
	if in.Channels <= 1 {
		return in
	}
	frames := in.frameCount()
	out := &PCMBuffer{SampleRate: in.SampleRate, Channels: 1, Samples: make([]int16, frames)}
	for f := 0; f < frames; f++ {
		sum := 0
		for ch := 0; ch < in.Channels; ch++ {
			sum += int(in.Samples[f*in.Channels+ch])
		}
		out.Samples[f] = int16(sum / in.Channels)
	}
	return out
}

// resample linearly interpolates mono PCM to the target rate.
func resample(in *PCMBuffer, targetRate int) *PCMBuffer {
	if in.SampleRate == targetRate || len(in.Samples) == 0 {
		return &PCMBuffer{SampleRate: targetRate, Channels: 1, Samples: in.Samples}
	}

	outLen := int(int64(len(in.Samples)) * int64(targetRate) / int64(in.SampleRate))
	if outLen == 0 {
		outLen = 1
	}
	out := &PCMBuffer{SampleRate: targetRate, Channels: 1, Samples: make([]int16, outLen)}

	ratio := float64(in.SampleRate) / float64(targetRate)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in.Samples)-1 {
			out.Samples[i] = in.Samples[len(in.Samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(in.Samples[idx])
		b := float64(in.Samples[idx+1])
		out.Samples[i] = int16(a + (b-a)*frac)
	}
	return out
}
