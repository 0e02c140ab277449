package audio

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func writeChunk(buf *bytes.Buffer, id string, body []byte) {
	buf.WriteString(id)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(body)))
	buf.Write(size[:])
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}
}

func fmtChunkBody(audioFormat, channels uint16, sampleRate uint32, bits uint16) []byte {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint16(body[0:2], audioFormat)
	binary.LittleEndian.PutUint16(body[2:4], channels)
	binary.LittleEndian.PutUint32(body[4:8], sampleRate)
	binary.LittleEndian.PutUint32(body[8:12], sampleRate*uint32(channels)*bytesPerSample)
	binary.LittleEndian.PutUint16(body[12:14], channels*bytesPerSample)
	binary.LittleEndian.PutUint16(body[14:16], bits)
	return body
}

func buildWAV(t *testing.T, chunks ...func(*bytes.Buffer)) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, chunk := range chunks {
		chunk(&body)
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(body.Len()))
	out.Write(size[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestWAVRoundTrip(t *testing.T) {
	clip := &Clip{
		Data:       []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		SampleRate: 22050,
		Channels:   1,
	}
	encoded, err := EncodeWAVBytes(clip)
	if err != nil {
		t.Fatalf("EncodeWAVBytes returned error: %v", err)
	}
	if len(encoded) != wavHeaderSize+len(clip.Data) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), wavHeaderSize+len(clip.Data))
	}
	if string(encoded[0:4]) != "RIFF" || string(encoded[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(encoded[4:8]); got != uint32(36+len(clip.Data)) {
		t.Fatalf("riff size = %d, want %d", got, 36+len(clip.Data))
	}
	if got := binary.LittleEndian.Uint16(encoded[20:22]); got != 1 {
		t.Fatalf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(encoded[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(encoded[24:28]); got != 22050 {
		t.Fatalf("sample rate = %d, want 22050", got)
	}
	if got := binary.LittleEndian.Uint32(encoded[28:32]); got != 44100 {
		t.Fatalf("byte rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint16(encoded[34:36]); got != 16 {
		t.Fatalf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(encoded[40:44]); got != uint32(len(clip.Data)) {
		t.Fatalf("data size = %d, want %d", got, len(clip.Data))
	}

	decoded, err := DecodeWAVBytes(encoded)
	if err != nil {
		t.Fatalf("DecodeWAVBytes returned error: %v", err)
	}
	if decoded.SampleRate != clip.SampleRate || decoded.Channels != clip.Channels {
		t.Fatalf("decoded format = %dHz/%dch", decoded.SampleRate, decoded.Channels)
	}
	if !bytes.Equal(decoded.Data, clip.Data) {
		t.Fatalf("decoded data = %v, want %v", decoded.Data, clip.Data)
	}
}

func TestDecodeWAVSkipsExtraChunks(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	wav := buildWAV(t,
		func(buf *bytes.Buffer) { writeChunk(buf, "fmt ", fmtChunkBody(1, 1, 22050, 16)) },
		func(buf *bytes.Buffer) { writeChunk(buf, "LIST", []byte("abc")) },
		func(buf *bytes.Buffer) { writeChunk(buf, "data", pcm) },
	)

	clip, err := DecodeWAVBytes(wav)
	if err != nil {
		t.Fatalf("DecodeWAVBytes returned error: %v", err)
	}
	if !bytes.Equal(clip.Data, pcm) {
		t.Fatalf("decoded data = %v, want %v", clip.Data, pcm)
	}
	if clip.SampleRate != 22050 || clip.Channels != 1 {
		t.Fatalf("decoded format = %dHz/%dch", clip.SampleRate, clip.Channels)
	}
}

func TestDecodeWAVStreamedDataSize(t *testing.T) {
	// eSpeak NG's --stdout leaves the data size unset because it cannot
	// seek back on a pipe.
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	var body bytes.Buffer
	body.WriteString("WAVE")
	writeChunk(&body, "fmt ", fmtChunkBody(1, 1, 22050, 16))
	body.WriteString("data")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], ^uint32(0))
	body.Write(size[:])
	body.Write(pcm)

	var wav bytes.Buffer
	wav.WriteString("RIFF")
	binary.LittleEndian.PutUint32(size[:], uint32(body.Len()))
	wav.Write(size[:])
	wav.Write(body.Bytes())

	clip, err := DecodeWAVBytes(wav.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAVBytes returned error: %v", err)
	}
	if !bytes.Equal(clip.Data, pcm) {
		t.Fatalf("decoded data = %v, want %v", clip.Data, pcm)
	}
}

func TestDecodeWAVRejectsNonPCM(t *testing.T) {
	wav := buildWAV(t,
		func(buf *bytes.Buffer) { writeChunk(buf, "fmt ", fmtChunkBody(3, 1, 22050, 32)) },
		func(buf *bytes.Buffer) { writeChunk(buf, "data", []byte{0, 0}) },
	)
	if _, err := DecodeWAVBytes(wav); err == nil || !strings.Contains(err.Error(), "unsupported audio format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestDecodeWAVRejectsWrongBitDepth(t *testing.T) {
	wav := buildWAV(t,
		func(buf *bytes.Buffer) { writeChunk(buf, "fmt ", fmtChunkBody(1, 1, 22050, 8)) },
		func(buf *bytes.Buffer) { writeChunk(buf, "data", []byte{0, 0}) },
	)
	if _, err := DecodeWAVBytes(wav); err == nil || !strings.Contains(err.Error(), "unsupported bit depth") {
		t.Fatalf("expected bit depth error, got %v", err)
	}
}

func TestDecodeWAVRejectsNonRIFF(t *testing.T) {
	if _, err := DecodeWAVBytes([]byte("ID3\x03not a wav stream")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestDecodeWAVMissingDataChunk(t *testing.T) {
	wav := buildWAV(t,
		func(buf *bytes.Buffer) { writeChunk(buf, "fmt ", fmtChunkBody(1, 1, 22050, 16)) },
	)
	if _, err := DecodeWAVBytes(wav); err == nil || !strings.Contains(err.Error(), "no data chunk") {
		t.Fatalf("expected missing data chunk error, got %v", err)
	}
}

func TestEncodeWAVRejectsInvalidClip(t *testing.T) {
	if err := EncodeWAV(&bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected error for nil clip")
	}
	bad := &Clip{Data: []byte{0, 0}, SampleRate: 0, Channels: 1}
	if err := EncodeWAV(&bytes.Buffer{}, bad); err == nil {
		t.Fatal("expected error for invalid sample rate")
	}
}
