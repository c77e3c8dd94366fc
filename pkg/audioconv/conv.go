// Package audioconv decodes the audio files the assistant deals with (WAV
// captures, synthesized MP3/Opus replies) into mono float32 PCM, measures
// their length and encodes captured PCM back to WAV.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"

	"jarvis/internal/fsutil"
)

// SampleRate is the rate speech models expect.
const SampleRate = 16000

type Options struct {
	MaxSamples int
}

// Clip is mono PCM in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// ConvertFileToPCM16k decodes path and resamples it to 16 kHz mono.
func ConvertFileToPCM16k(_ context.Context, path string, opt Options) ([]float32, error) {
	clip, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	x := resampleLinear(clip.Samples, clip.SampleRate, SampleRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

// DecodeFile picks a decoder by extension, falling back to sniffing the
// container magic.
func DecodeFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(f)
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Clip{}, err
	}
	switch {
	case string(magic) == "RIFF":
		return decodeWAV(f)
	case string(magic) == "OggS":
		return decodeOgg(f)
	case string(magic[:min(3, len(magic))]) == "ID3":
		return decodeMP3(f)
	}
	return Clip{}, fmt.Errorf("unsupported audio format: %s (supported: wav/mp3/ogg-vorbis/opus)", filepath.Base(path))
}

// Duration reports the playing time of an audio file. WAV and MP3 lengths
// come from their headers; other formats are decoded.
func Duration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			return 0, errors.New("invalid wav")
		}
		if err := dec.FwdToPCM(); err != nil {
			return 0, err
		}
		bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth/8)
		if bytesPerSec <= 0 {
			return 0, errors.New("invalid wav format")
		}
		return time.Duration(dec.PCMLen() * int64(time.Second) / bytesPerSec), nil
	case ".mp3":
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return 0, err
		}
		// 16-bit stereo frames.
		frames := dec.Length() / 4
		if dec.SampleRate() <= 0 || frames <= 0 {
			return 0, errors.New("mp3 length unknown")
		}
		return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), nil
	}
	clip, err := DecodeFile(path)
	if err != nil {
		return 0, err
	}
	return clip.Duration(), nil
}

// WriteWAV stores mono PCM as 16-bit WAV, replacing path atomically.
func WriteWAV(path string, pcm []float32, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".capture-*.wav")
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := wav.NewEncoder(tmp, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           float32ToInt16(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish wav: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return err
	}
	err = fsutil.WriteFrom(path, tmp, 0o644)
	tmp.Close()
	return err
}

func decodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, err
	}
	if pb == nil || len(pb.Data) == 0 {
		// A capture with no speech is stored as a header-only file.
		return Clip{SampleRate: int(dec.SampleRate)}, nil
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return Clip{
		Samples:    downmixInterleaved(intSliceToFloat32(pb.Data, bd), ch),
		SampleRate: sr,
	}, nil
}

func decodeMP3(r io.Reader) (Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Clip{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return Clip{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return Clip{}, err
	}

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// go-mp3 always yields interleaved stereo.
	return Clip{Samples: downmixInterleaved(int16SliceToFloat32(ints), 2), SampleRate: sr}, nil
}

// decodeOgg tries Vorbis first and Opus second; OpenAI's "opus" format is an
// Ogg/Opus stream.
func decodeOgg(r io.ReadSeeker) (Clip, error) {
	clip, err := decodeOggVorbis(r)
	if err == nil {
		return clip, nil
	}
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return Clip{}, serr
	}
	clip, oerr := decodeOggOpus(r)
	if oerr != nil {
		return Clip{}, fmt.Errorf("cannot decode ogg as vorbis (%v) or opus: %w", err, oerr)
	}
	return clip, nil
}

func decodeOggVorbis(r io.Reader) (Clip, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return Clip{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return Clip{}, errors.New("invalid ogg/vorbis stream")
	}
	return Clip{Samples: downmixInterleaved(pcm, format.Channels), SampleRate: format.SampleRate}, nil
}

func decodeOggOpus(r io.ReadSeeker) (Clip, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return Clip{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm = append(pcm, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, err
		}
	}
	// libopus always decodes at 48 kHz.
	return Clip{Samples: downmixInterleaved(pcm, ch), SampleRate: 48000}, nil
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func float32ToInt16(data []float32) []int {
	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(math.Round(clamp(float64(v), -1, 1) * 32767))
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 || inSR <= 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
