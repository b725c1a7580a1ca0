package loopdeck

import (
	"encoding/binary"
	"math"

	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/config"
)

// RenderComposition plays doc from bar 0 on a device-less engine and
// returns seconds of interleaved stereo.
func RenderComposition(doc *composition.Document, cfg config.Config, seconds float64, opts ...Option) ([]float32, error) {
	opts = append([]Option{WithConfig(cfg)}, opts...)
	opts = append(opts, WithOutput(false))
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if err := e.LoadComposition(doc); err != nil {
		return nil, err
	}
	if err := e.Play(); err != nil {
		return nil, err
	}
	return e.Render(seconds)
}

// EncodeWAVFloat32LE wraps interleaved samples in a 32-bit float WAV.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
