package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// wavBitDepth is the sample size WriteWAV produces.
const wavBitDepth = 16

// FileSource is a Source replaying a decoded WAV or FLAC file as mono
// batches. The last batch may be short.
type FileSource struct {
	*pump
	samples []float32
	pos     int
}

// NewFileSource decodes path, chosen by extension, and downmixes it to mono.
func NewFileSource(path string, batchSize int, opts ...StreamOption) (*FileSource, error) {
	var (
		samples []float32
		rate    uint32
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		samples, rate, err = decodeWAV(path)
	case ".flac":
		samples, rate, err = decodeFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	o := applyStreamOptions(opts)
	p := newPump(rate, batchSize)
	p.paced, p.limit = o.paced, o.limit
	return &FileSource{pump: p, samples: samples}, nil
}

// Len returns the number of decoded mono samples.
func (f *FileSource) Len() int {
	return len(f.samples)
}

// Start begins replaying from the start of the file.
func (f *FileSource) Start() error {
	return f.start(func(dst []float32) int {
		n := copy(dst, f.samples[f.pos:])
		f.pos += n
		return n
	})
}

func decodeWAV(path string) ([]float32, uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav file %s", ErrUnsupportedFormat, path)
	}
	if dec.NumChans == 0 || dec.BitDepth == 0 {
		return nil, 0, fmt.Errorf("%w: wav header without channels or bit depth", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	scale := float32(int(1) << (dec.BitDepth - 1))
	mono := make([]float32, len(buf.Data)/channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono, dec.SampleRate, nil
}

func decodeFLAC(path string) ([]float32, uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open flac: %w", err)
	}
	defer file.Close()

	stream, err := flac.New(file)
	if err != nil {
		return nil, 0, fmt.Errorf("parse flac: %w", err)
	}
	info := stream.Info
	if info.NChannels == 0 || info.BitsPerSample == 0 {
		return nil, 0, fmt.Errorf("%w: flac stream without channels or bit depth", ErrUnsupportedFormat)
	}
	channels := int(info.NChannels)
	scale := float32(int(1) << (info.BitsPerSample - 1))

	mono := make([]float32, 0, info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("decode flac frame: %w", err)
		}
		for i := range frame.Subframes[0].Samples {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			mono = append(mono, sum/float32(channels))
		}
	}
	return mono, info.SampleRate, nil
}

// WriteWAV stores mono samples in [-1, 1] as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate uint32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	const peak = 1<<(wavBitDepth-1) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(max(-1, min(1, s))) * peak))
	}

	enc := wav.NewEncoder(file, int(sampleRate), wavBitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: int(sampleRate)},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("finish wav: %w", err)
	}
	return file.Close()
}
