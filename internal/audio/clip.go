// Package audio holds the PCM clip model shared across the pipeline:
// engines decode their output into clips, the assembler joins clips into
// section tracks, and the WAV codec and ffmpeg bridge move clips in and
// out of the s16le working format.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// bytesPerSample is fixed: every clip in the pipeline is s16le PCM.
const bytesPerSample = 2

// Clip is a decoded audio segment: interleaved s16le samples at a fixed
// sample rate and channel count.
type Clip struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the clip's play time.
func (c *Clip) Duration() time.Duration {
	if c == nil {
		return 0
	}
	return Duration(len(c.Data), c.SampleRate, c.Channels)
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	return len(c.Data) / (c.Channels * bytesPerSample)
}

// Duration converts an s16le PCM byte length to wall time.
func Duration(byteLen, sampleRate, channels int) time.Duration {
	if byteLen <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := byteLen / (channels * bytesPerSample)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Silence returns a clip of d silence at the given rate and channel count.
func Silence(d time.Duration, sampleRate, channels int) *Clip {
	if d < 0 {
		d = 0
	}
	frames := int(int64(d) * int64(sampleRate) / int64(time.Second))
	return &Clip{
		Data:       make([]byte, frames*channels*bytesPerSample),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Concat joins clips into one. All clips must share the same sample rate
// and channel count.
func Concat(clips ...*Clip) (*Clip, error) {
	if len(clips) == 0 {
		return nil, errors.New("concat: no clips")
	}
	first := clips[0]
	if first == nil {
		return nil, errors.New("concat: nil clip")
	}
	total := 0
	for i, clip := range clips {
		if clip == nil {
			return nil, fmt.Errorf("concat: nil clip at index %d", i)
		}
		if clip.SampleRate != first.SampleRate || clip.Channels != first.Channels {
			return nil, fmt.Errorf(
				"concat: clip %d is %dHz/%dch, want %dHz/%dch",
				i, clip.SampleRate, clip.Channels, first.SampleRate, first.Channels,
			)
		}
		total += len(clip.Data)
	}
	data := make([]byte, 0, total)
	for _, clip := range clips {
		data = append(data, clip.Data...)
	}
	return &Clip{Data: data, SampleRate: first.SampleRate, Channels: first.Channels}, nil
}
