package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestInt16RoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	got := BytesToInt16(Int16ToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("length = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestBytesToFloat32Normalization(t *testing.T) {
	t.Parallel()

	pcm := Int16ToBytes([]int16{-32768, 0, 16384})
	got := BytesToFloat32(pcm)
	want := []float32{-1.0, 0, 0.5}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFloat32ToBytesClamps(t *testing.T) {
	t.Parallel()

	out := BytesToInt16(Float32ToBytes([]float32{2.0, -2.0}))
	if out[0] != 32767 {
		t.Errorf("positive overflow = %d, want 32767", out[0])
	}
	if out[1] != -32768 {
		t.Errorf("negative overflow = %d, want -32768", out[1])
	}
}

func TestDurationArithmetic(t *testing.T) {
	t.Parallel()

	// 16 kHz mono s16le is 32 000 bytes per second.
	if got := DurationMs(32000, 16000); got != 1000 {
		t.Errorf("DurationMs(32000) = %d, want 1000", got)
	}
	if got := DurationMs(960, 16000); got != 30 {
		t.Errorf("DurationMs(960) = %d, want 30", got)
	}
	if got := BytesForMs(1500, 16000); got != 48000 {
		t.Errorf("BytesForMs(1500) = %d, want 48000", got)
	}
	if got := BytesForMs(2500, 16000); got != 80000 {
		t.Errorf("BytesForMs(2500) = %d, want 80000", got)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := RMS(make([]byte, 1920)); got != 0 {
		t.Errorf("silence RMS = %v, want 0", got)
	}

	constant := make([]int16, 480)
	for i := range constant {
		constant[i] = 1000
	}
	if got := RMS(Int16ToBytes(constant)); math.Abs(got-1000) > 0.01 {
		t.Errorf("constant RMS = %v, want 1000", got)
	}

	if got := RMSFloat32([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("float RMS = %v, want 0.5", got)
	}
}

func TestWrapWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 32000)
	wav := WrapWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if byteRate := binary.LittleEndian.Uint32(wav[28:32]); byteRate != 32000 {
		t.Errorf("byte rate = %d, want 32000", byteRate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	src := make([]int16, 48000) // 1 s at 48 kHz
	for i := range src {
		src[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	out := ResampleMono16(Int16ToBytes(src), 48000, 16000)
	if got := len(out) / 2; got != 16000 {
		t.Fatalf("resampled samples = %d, want 16000", got)
	}

	same := Int16ToBytes(src[:100])
	if got := ResampleMono16(same, 16000, 16000); !bytes.Equal(got, same) {
		t.Error("same-rate input should be returned unchanged")
	}
}
