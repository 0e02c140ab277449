package audio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestDecodeArgs(t *testing.T) {
	got := strings.Join(decodeArgs(22050, 1), " ")
	want := "-hide_banner -loglevel error -i pipe:0 -f s16le -acodec pcm_s16le -ar 22050 -ac 1 pipe:1"
	if got != want {
		t.Fatalf("decodeArgs = %q, want %q", got, want)
	}
}

func TestResampleArgs(t *testing.T) {
	got := strings.Join(resampleArgs(44100, 2, 22050, 1), " ")
	want := "-hide_banner -loglevel error -f s16le -ar 44100 -ac 2 -i pipe:0 -f s16le -acodec pcm_s16le -ar 22050 -ac 1 pipe:1"
	if got != want {
		t.Fatalf("resampleArgs = %q, want %q", got, want)
	}
}

func TestEncodeMP3Args(t *testing.T) {
	got := strings.Join(encodeMP3Args(22050, 1, "128k", "/tmp/out.mp3"), " ")
	want := "-y -hide_banner -loglevel error -f s16le -ar 22050 -ac 1 -i pipe:0 -codec:a libmp3lame -b:a 128k /tmp/out.mp3"
	if got != want {
		t.Fatalf("encodeMP3Args = %q, want %q", got, want)
	}
}

func TestResamplePCMPassthrough(t *testing.T) {
	clip := &Clip{Data: []byte{1, 2, 3, 4}, SampleRate: 22050, Channels: 1}
	// The binary path does not exist; a matching clip must never reach ffmpeg.
	got, err := ResamplePCM(context.Background(), "/nonexistent/ffmpeg", clip, 22050, 1)
	if err != nil {
		t.Fatalf("ResamplePCM returned error: %v", err)
	}
	if got != clip {
		t.Fatal("expected matching clip to be returned unchanged")
	}
}

func TestDecodeToPCMValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := DecodeToPCM(ctx, "/nonexistent/ffmpeg", nil, 22050, 1); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := DecodeToPCM(ctx, "/nonexistent/ffmpeg", []byte{1}, 0, 1); err == nil {
		t.Fatal("expected error for invalid target format")
	}
}

func TestEncodeMP3Validation(t *testing.T) {
	ctx := context.Background()
	if err := EncodeMP3(ctx, "/nonexistent/ffmpeg", nil, "128k", "/tmp/out.mp3"); err == nil {
		t.Fatal("expected error for empty clip")
	}
	clip := &Clip{Data: []byte{1, 2}, SampleRate: 22050, Channels: 1}
	if err := EncodeMP3(ctx, "/nonexistent/ffmpeg", clip, "128k", ""); err == nil {
		t.Fatal("expected error for missing output path")
	}
}

func TestDecodeToPCMPipesThroughBinary(t *testing.T) {
	stub := writeStub(t, "ffmpeg", "#!/bin/sh\ncat\n")
	input := []byte{0x0a, 0x0b, 0x0c, 0x0d}

	clip, err := DecodeToPCM(context.Background(), stub, input, 22050, 1)
	if err != nil {
		t.Fatalf("DecodeToPCM returned error: %v", err)
	}
	if !bytes.Equal(clip.Data, input) {
		t.Fatalf("clip data = %v, want %v", clip.Data, input)
	}
	if clip.SampleRate != 22050 || clip.Channels != 1 {
		t.Fatalf("clip format = %dHz/%dch", clip.SampleRate, clip.Channels)
	}
}

func TestRunFFmpegReportsStderr(t *testing.T) {
	stub := writeStub(t, "ffmpeg", "#!/bin/sh\necho boom >&2\nexit 1\n")

	_, err := DecodeToPCM(context.Background(), stub, []byte{1, 2}, 22050, 1)
	if err == nil {
		t.Fatal("expected error from failing binary")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error does not include stderr output: %v", err)
	}
}

func TestEncodeMP3DefaultsBitrate(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	clip := &Clip{Data: []byte{1, 2}, SampleRate: 22050, Channels: 1}
	if err := EncodeMP3(context.Background(), stub, clip, "", filepath.Join(dir, "out.mp3")); err != nil {
		t.Fatalf("EncodeMP3 returned error: %v", err)
	}
	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	if !strings.Contains(string(recorded), "-b:a 128k") {
		t.Fatalf("recorded args missing default bitrate: %s", recorded)
	}
}
