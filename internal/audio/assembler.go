package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"puhuri/internal/config"
	"puhuri/internal/fileutil"
	"puhuri/internal/logging"
)

// Track is the concatenated audio for one lesson section.
type Track struct {
	Clip     *Clip
	Segments int
	Pause    time.Duration
}

// Duration returns the track's play time.
func (t *Track) Duration() time.Duration {
	if t == nil {
		return 0
	}
	return t.Clip.Duration()
}

// Assembler joins clips into section tracks with configured pauses and
// renders them to disk.
type Assembler struct {
	sampleRate int
	channels   int
	pause      time.Duration
	format     string
	bitrate    string
	ffmpegBin  string
	logger     *slog.Logger
}

// NewAssembler builds an Assembler from the audio configuration. The
// ffmpegBinary is only exercised for MP3 output.
func NewAssembler(cfg *config.Config, ffmpegBinary string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.Channels,
		pause:      time.Duration(cfg.Audio.PauseSeconds * float64(time.Second)),
		format:     strings.ToLower(strings.TrimSpace(cfg.Audio.Format)),
		bitrate:    cfg.Audio.Bitrate,
		ffmpegBin:  ffmpegBinary,
		logger:     logger.With(logging.String(logging.FieldComponent, "assembler")),
	}
}

// TrackExt maps an output format name to the rendered file extension.
// Everything except WAV renders as MP3.
func TrackExt(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "wav") {
		return "wav"
	}
	return "mp3"
}

// OutputExt returns the file extension for rendered tracks.
func (a *Assembler) OutputExt() string {
	return TrackExt(a.format)
}

// Pause returns the configured inter-clip silence.
func (a *Assembler) Pause() time.Duration {
	return a.pause
}

// Assemble joins the clips in order with the configured pause between
// consecutive clips. The track duration equals the sum of clip durations
// plus (len(clips)-1) pauses. Every clip must already match the configured
// sample rate and channel count.
func (a *Assembler) Assemble(clips []*Clip) (*Track, error) {
	if len(clips) == 0 {
		return nil, errors.New("assemble: no clips")
	}
	for i, clip := range clips {
		if clip == nil || len(clip.Data) == 0 {
			return nil, fmt.Errorf("assemble: empty clip at index %d", i)
		}
		if clip.SampleRate != a.sampleRate || clip.Channels != a.channels {
			return nil, fmt.Errorf(
				"assemble: clip %d is %dHz/%dch, configured output is %dHz/%dch",
				i, clip.SampleRate, clip.Channels, a.sampleRate, a.channels,
			)
		}
	}

	sequence := make([]*Clip, 0, len(clips)*2-1)
	var gap *Clip
	if a.pause > 0 {
		gap = Silence(a.pause, a.sampleRate, a.channels)
	}
	for i, clip := range clips {
		if i > 0 && gap != nil {
			sequence = append(sequence, gap)
		}
		sequence = append(sequence, clip)
	}

	joined, err := Concat(sequence...)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return &Track{Clip: joined, Segments: len(clips), Pause: a.pause}, nil
}

// WriteTrack renders the track to path. WAV output is written atomically in
// pure Go; MP3 output goes through ffmpeg.
func (a *Assembler) WriteTrack(ctx context.Context, track *Track, path string) error {
	if track == nil || track.Clip == nil {
		return errors.New("write track: empty track")
	}
	switch a.OutputExt() {
	case "wav":
		data, err := EncodeWAVBytes(track.Clip)
		if err != nil {
			return fmt.Errorf("write track: %w", err)
		}
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("write track: %w", err)
		}
	default:
		if err := EncodeMP3(ctx, a.ffmpegBin, track.Clip, a.bitrate, path); err != nil {
			return fmt.Errorf("write track: %w", err)
		}
	}
	a.logger.Debug("track rendered",
		logging.String("path", path),
		logging.Int("segments", track.Segments),
		logging.Duration("duration", track.Duration()))
	return nil
}
