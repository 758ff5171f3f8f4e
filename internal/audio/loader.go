package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

const (
	// DefaultSampleRate is the rate every waveform is resampled to
	DefaultSampleRate = 16000

	// DefaultTrimTopDB is the level below the loudest frame that counts as silence
	DefaultTrimTopDB = 20.0

	trimFrameLength = 2048
	trimHopLength   = 512
	resampleQuality = 4
	streamBlockSize = 4096
)

// LoaderConfig contains waveform loading parameters
type LoaderConfig struct {
	SampleRate int     // target rate, 0 selects DefaultSampleRate
	TrimTopDB  float64 // 0 selects DefaultTrimTopDB, negative disables trimming
}

// Loader reads audio files into normalised, trimmed mono waveforms
type Loader struct {
	sampleRate int
	trimTopDB  float64
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) },
	".ogg": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
}

// NewLoader creates a waveform loader
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.TrimTopDB == 0 {
		cfg.TrimTopDB = DefaultTrimTopDB
	}
	return &Loader{sampleRate: cfg.SampleRate, trimTopDB: cfg.TrimTopDB}
}

// SupportedFormat reports whether path has an extension the loader decodes
func SupportedFormat(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SampleRate returns the rate of every waveform the loader produces
func (l *Loader) SampleRate() int {
	return l.sampleRate
}

// Load decodes path, downmixes to mono, resamples to the target rate,
// peak-normalises and trims leading/trailing silence.
// All failures wrap ErrLoad.
func (l *Loader) Load(path string) (*Waveform, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported audio format %q", ErrLoad, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrLoad, path, err)
	}
	defer streamer.Close()

	var source beep.Streamer = streamer
	if int(format.SampleRate) != l.sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(l.sampleRate), streamer)
	}

	samples, err := drainMono(source, format.NumChannels)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrLoad, path, err)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s contains no audio", ErrLoad, path)
	}

	Normalize(samples)
	if l.trimTopDB > 0 {
		samples = TrimSilence(samples, l.trimTopDB)
	}

	return &Waveform{Samples: samples, SampleRate: l.sampleRate}, nil
}

// LoadReader buffers r to a temporary file carrying ext and loads it.
// Some beep decoders need a seekable source, so the upload is spooled.
func (l *Loader) LoadReader(r io.Reader, ext string) (*Waveform, error) {
	tmp, err := os.CreateTemp("", "emotion-*"+strings.ToLower(ext))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: failed to spool upload: %w", ErrLoad, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return l.Load(tmp.Name())
}

// drainMono reads s to the end, averaging the stereo pair beep yields.
// beep duplicates mono sources into both channels.
func drainMono(s beep.Streamer, channels int) ([]float64, error) {
	var out []float64
	buf := make([][2]float64, streamBlockSize)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			if channels == 1 {
				out = append(out, frame[0])
			} else {
				out = append(out, (frame[0]+frame[1])/2)
			}
		}
		if !ok {
			break
		}
	}
	return out, s.Err()
}

// Normalize scales samples in place so the peak amplitude is 1.
// Silent input is left untouched.
func Normalize(samples []float64) {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak == 0 {
		return
	}
	for i := range samples {
		samples[i] /= peak
	}
}

// TrimSilence removes leading and trailing audio whose frame energy is
// more than topDB below the loudest frame. Frames are centred on multiples
// of the hop length and zero padded at the edges.
func TrimSilence(samples []float64, topDB float64) []float64 {
	if len(samples) == 0 {
		return samples
	}

	numFrames := 1 + len(samples)/trimHopLength
	power := make([]float64, numFrames)
	var maxPower float64
	for k := range power {
		center := k * trimHopLength
		lo := center - trimFrameLength/2
		hi := center + trimFrameLength/2
		var sum float64
		for i := max(lo, 0); i < min(hi, len(samples)); i++ {
			sum += samples[i] * samples[i]
		}
		power[k] = sum / trimFrameLength
		maxPower = math.Max(maxPower, power[k])
	}

	if maxPower == 0 {
		return samples[:0]
	}

	first, last := -1, -1
	for k, p := range power {
		if p <= 0 {
			continue
		}
		if 10*math.Log10(p/maxPower) > -topDB {
			if first < 0 {
				first = k
			}
			last = k
		}
	}
	if first < 0 {
		return samples[:0]
	}

	start := first * trimHopLength
	end := min((last+1)*trimHopLength, len(samples))
	return samples[start:end]
}
