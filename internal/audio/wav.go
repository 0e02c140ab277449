package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// EncodeWAV writes the clip as a canonical PCM WAV with a 44-byte header.
func EncodeWAV(w io.Writer, clip *Clip) error {
	if clip == nil {
		return errors.New("encode wav: nil clip")
	}
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("encode wav: invalid format %dHz/%dch", clip.SampleRate, clip.Channels)
	}
	dataLen := len(clip.Data)
	blockAlign := clip.Channels * bytesPerSample
	byteRate := clip.SampleRate * blockAlign

	var header [wavHeaderSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(clip.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(clip.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("encode wav: write header: %w", err)
	}
	if _, err := w.Write(clip.Data); err != nil {
		return fmt.Errorf("encode wav: write data: %w", err)
	}
	return nil
}

// EncodeWAVBytes renders the clip as a WAV byte slice.
func EncodeWAVBytes(clip *Clip) ([]byte, error) {
	var buf bytes.Buffer
	if clip != nil {
		buf.Grow(wavHeaderSize + len(clip.Data))
	}
	if err := EncodeWAV(&buf, clip); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWAV parses a PCM WAV stream into a clip. Only 16-bit integer PCM is
// supported; unknown chunks between fmt and data are skipped.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("decode wav: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, errors.New("decode wav: not a RIFF/WAVE stream")
	}

	var (
		clip      Clip
		haveFmt   bool
		chunkHead [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunkHead[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("decode wav: read chunk header: %w", err)
		}
		chunkID := string(chunkHead[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHead[4:8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("decode wav: fmt chunk too short (%d bytes)", chunkSize)
			}
			var fmtBody [16]byte
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return nil, fmt.Errorf("decode wav: read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtBody[0:2])
			channels := int(binary.LittleEndian.Uint16(fmtBody[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(fmtBody[4:8]))
			bits := binary.LittleEndian.Uint16(fmtBody[14:16])
			if audioFormat != 1 {
				return nil, fmt.Errorf("decode wav: unsupported audio format %d (want PCM)", audioFormat)
			}
			if bits != 16 {
				return nil, fmt.Errorf("decode wav: unsupported bit depth %d (want 16)", bits)
			}
			if channels <= 0 || sampleRate <= 0 {
				return nil, fmt.Errorf("decode wav: invalid format %dHz/%dch", sampleRate, channels)
			}
			clip.Channels = channels
			clip.SampleRate = sampleRate
			haveFmt = true
			if err := discardChunk(r, chunkSize-16); err != nil {
				return nil, err
			}
		case "data":
			if !haveFmt {
				return nil, errors.New("decode wav: data chunk before fmt chunk")
			}
			// Writers streaming to a pipe cannot seek back to patch the
			// size, so eSpeak NG and friends leave a placeholder here.
			if chunkSize == 0 || chunkSize == int64(^uint32(0)) {
				data, err := io.ReadAll(r)
				if err != nil {
					return nil, fmt.Errorf("decode wav: read streamed data chunk: %w", err)
				}
				clip.Data = data
				return &clip, nil
			}
			data := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("decode wav: read data chunk: %w", err)
			}
			clip.Data = data
			return &clip, nil
		default:
			if err := discardChunk(r, chunkSize); err != nil {
				return nil, err
			}
		}
		// Chunks are word-aligned: odd sizes carry one pad byte.
		if chunkSize%2 == 1 {
			if err := discardChunk(r, 1); err != nil {
				return nil, err
			}
		}
	}
	return nil, errors.New("decode wav: no data chunk")
}

// DecodeWAVBytes parses a WAV byte slice into a clip.
func DecodeWAVBytes(data []byte) (*Clip, error) {
	return DecodeWAV(bytes.NewReader(data))
}

func discardChunk(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("decode wav: skip chunk: %w", err)
	}
	return nil
}
