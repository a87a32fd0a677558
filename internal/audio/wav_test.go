package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 3200) // 0.1s at 16kHz mono
	wav, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Errorf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Error("missing RIFF marker")
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing WAVE marker")
	}
	if !bytes.Equal(wav[36:40], []byte("data")) {
		t.Error("missing data marker")
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Error("expected error for empty audio data")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, format, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if format.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", format.SampleRate)
	}
	if format.Channels != 1 {
		t.Errorf("expected mono, got %d channels", format.Channels)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Error("decoded PCM does not match input")
	}
}

func TestDecodeWAVTooShort(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("RIFF")); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestDecodeWAVNotRIFF(t *testing.T) {
	data := make([]byte, 64)
	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("expected error for non-RIFF data")
	}
}

func TestWAVDuration(t *testing.T) {
	// 1 second at 16kHz mono 16-bit = 32000 bytes
	pcm := make([]byte, 32000)
	wav, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	duration, err := WAVDuration(wav)
	if err != nil {
		t.Fatalf("WAVDuration: %v", err)
	}
	if duration != 1.0 {
		t.Errorf("expected 1.0s, got %f", duration)
	}
}

func TestRMSLevelSilence(t *testing.T) {
	pcm := make([]byte, 3200)
	if level := RMSLevel(pcm); level != 0 {
		t.Errorf("expected zero level for silence, got %f", level)
	}
	if !IsSilent(pcm) {
		t.Error("all-zero PCM should be silent")
	}
}

func TestRMSLevelFullScale(t *testing.T) {
	// Alternating full-scale samples
	pcm := make([]byte, 3200)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0xFF
		pcm[i+1] = 0x7F // 32767
	}

	level := RMSLevel(pcm)
	if level < 0.99 || level > 1.0 {
		t.Errorf("expected near-full-scale level, got %f", level)
	}
	if IsSilent(pcm) {
		t.Error("full-scale PCM should not be silent")
	}
}
