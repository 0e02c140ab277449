package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// decodeArgs builds the ffmpeg argument list that turns any container or
// codec on stdin into s16le PCM on stdout at the target rate and channels.
func decodeArgs(sampleRate, channels int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}
}

// resampleArgs builds the ffmpeg argument list that reads raw s16le PCM on
// stdin and rewrites it at the target rate and channels.
func resampleArgs(srcRate, srcChannels, dstRate, dstChannels int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(srcRate),
		"-ac", strconv.Itoa(srcChannels),
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(dstRate),
		"-ac", strconv.Itoa(dstChannels),
		"pipe:1",
	}
}

// encodeMP3Args builds the ffmpeg argument list that encodes raw s16le PCM
// on stdin into an MP3 file through libmp3lame.
func encodeMP3Args(sampleRate, channels int, bitrate, outputPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		outputPath,
	}
}

// DecodeToPCM converts encoded audio (WAV, MP3, or anything else ffmpeg
// understands) into an s16le clip at the target rate and channel count.
func DecodeToPCM(ctx context.Context, ffmpegBinary string, input []byte, sampleRate, channels int) (*Clip, error) {
	if len(input) == 0 {
		return nil, errors.New("decode to pcm: empty input")
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("decode to pcm: invalid target format %dHz/%dch", sampleRate, channels)
	}
	data, err := runFFmpeg(ctx, ffmpegBinary, decodeArgs(sampleRate, channels), input)
	if err != nil {
		return nil, fmt.Errorf("decode to pcm: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("decode to pcm: ffmpeg produced no audio")
	}
	return &Clip{Data: data, SampleRate: sampleRate, Channels: channels}, nil
}

// ResamplePCM converts a raw PCM clip to the target rate and channel count.
// A clip that already matches is returned unchanged.
func ResamplePCM(ctx context.Context, ffmpegBinary string, clip *Clip, sampleRate, channels int) (*Clip, error) {
	if clip == nil {
		return nil, errors.New("resample pcm: nil clip")
	}
	if clip.SampleRate == sampleRate && clip.Channels == channels {
		return clip, nil
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("resample pcm: invalid target format %dHz/%dch", sampleRate, channels)
	}
	args := resampleArgs(clip.SampleRate, clip.Channels, sampleRate, channels)
	data, err := runFFmpeg(ctx, ffmpegBinary, args, clip.Data)
	if err != nil {
		return nil, fmt.Errorf("resample pcm: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("resample pcm: ffmpeg produced no audio")
	}
	return &Clip{Data: data, SampleRate: sampleRate, Channels: channels}, nil
}

// EncodeMP3 pipes the clip through libmp3lame into outputPath at the given
// bitrate (for example "128k").
func EncodeMP3(ctx context.Context, ffmpegBinary string, clip *Clip, bitrate, outputPath string) error {
	if clip == nil || len(clip.Data) == 0 {
		return errors.New("encode mp3: empty clip")
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = "128k"
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("encode mp3: output path required")
	}
	args := encodeMP3Args(clip.SampleRate, clip.Channels, bitrate, outputPath)
	if _, err := runFFmpeg(ctx, ffmpegBinary, args, clip.Data); err != nil {
		return fmt.Errorf("encode mp3: %w", err)
	}
	return nil
}

func runFFmpeg(ctx context.Context, ffmpegBinary string, args []string, stdin []byte) ([]byte, error) {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
