package audio

// G.711 companded telephony codecs. Both halve the wire size of 16-bit PCM
// and are cheap enough to run inline on the query path.

const (
	CodecNameULaw = "ulaw"
	CodecNameALaw = "alaw"
)

const (
	g711SignBit   = 0x80
	g711QuantMask = 0x0F
	g711SegMask   = 0x70
	g711SegShift  = 4
	ulawBias      = 0x84
	ulawClip      = 8159
)

var segAEnd = [8]int16{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}
var segUEnd = [8]int16{0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF}

func segSearch(val int16, table [8]int16) int {
	for i, end := range table {
		if val <= end {
			return i
		}
	}
	return 8
}

func linearToULaw(sample int16) byte {
	var mask byte
	pcm := sample >> 2
	if pcm < 0 {
		pcm = -pcm
		mask = 0x7F
	} else {
		mask = 0xFF
	}
	if pcm > ulawClip {
		pcm = ulawClip
	}
	pcm += ulawBias >> 2

	seg := segSearch(pcm, segUEnd)
	if seg >= 8 {
		return 0x7F ^ mask
	}
	uval := byte(seg)<<g711SegShift | byte((pcm>>(uint(seg)+1))&g711QuantMask)
	return uval ^ mask
}

func ulawToLinear(u byte) int16 {
	u = ^u
	t := (int16(u&g711QuantMask) << 3) + ulawBias
	t <<= (u & g711SegMask) >> g711SegShift
	if u&g711SignBit != 0 {
		return ulawBias - t
	}
	return t - ulawBias
}

func linearToALaw(sample int16) byte {
	var mask byte
	pcm := sample >> 3
	if pcm >= 0 {
		mask = 0xD5
	} else {
		mask = 0x55
		pcm = -pcm - 1
	}

	seg := segSearch(pcm, segAEnd)
	if seg >= 8 {
		return 0x7F ^ mask
	}
	aval := byte(seg) << g711SegShift
	if seg < 2 {
		aval |= byte(pcm>>1) & g711QuantMask
	} else {
		aval |= byte(pcm>>uint(seg)) & g711QuantMask
	}
	return aval ^ mask
}

func alawToLinear(a byte) int16 {
	a ^= 0x55
	t := int16(a&g711QuantMask) << 4
	seg := (a & g711SegMask) >> g711SegShift
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&g711SignBit != 0 {
		return t
	}
	return -t
}

// ULawCodec is ITU-T G.711 µ-law.
type ULawCodec struct{}

func (ULawCodec) Name() string { return CodecNameULaw }

func (ULawCodec) Decode(params string, data []byte) (*PCMBuffer, error) {
	sampleRate, channels := parseParams(params)
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = ulawToLinear(b)
	}
	return &PCMBuffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}

func (ULawCodec) Encode(pcm *PCMBuffer) ([]byte, string, error) {
	data := make([]byte, len(pcm.Samples))
	for i, s := range pcm.Samples {
		data[i] = linearToULaw(s)
	}
	return data, formatParams(pcm.SampleRate, pcm.Channels), nil
}

func (ULawCodec) BytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels
}

// ALawCodec is ITU-T G.711 A-law.
type ALawCodec struct{}

func (ALawCodec) Name() string { return CodecNameALaw }

func (ALawCodec) Decode(params string, data []byte) (*PCMBuffer, error) {
	sampleRate, channels := parseParams(params)
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = alawToLinear(b)
	}
	return &PCMBuffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}

func (ALawCodec) Encode(pcm *PCMBuffer) ([]byte, string, error) {
	data := make([]byte, len(pcm.Samples))
	for i, s := range pcm.Samples {
		data[i] = linearToALaw(s)
	}
	return data, formatParams(pcm.SampleRate, pcm.Channels), nil
}

func (ALawCodec) BytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels
}
