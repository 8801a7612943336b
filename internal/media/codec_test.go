package media

import "testing"

func TestMuLawRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 3200, -3200, 32000, -32000}
	for _, s := range samples {
		encoded := pcmToMuLaw(s)
		decoded := muLawDecodeTable[encoded]
		diff := int(decoded) - int(s)
		if diff < 0 {
			diff = -diff
		}
		// mu-law is lossy; tolerate quantization error proportional to magnitude.
		if diff > 800 {
			t.Errorf("muLaw round trip for %d = %d, diff %d too large", s, decoded, diff)
		}
	}
}

func TestMuLawToPCM_Length(t *testing.T) {
	encoded := []byte{0xFF, 0x00, 0x80}
	pcm := muLawToPCM(encoded)
	if len(pcm) != len(encoded)*2 {
		t.Errorf("len(pcm) = %d, want %d", len(pcm), len(encoded)*2)
	}
}

func TestPcmToMuLawBytes_OddTrailingByteDropped(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03}
	out := pcmToMuLawBytes(pcm)
	if len(out) != 1 {
		t.Errorf("len(out) = %d, want 1", len(out))
	}
}

func TestUpsamplePCM16_DoublesLength(t *testing.T) {
	pcm := make([]byte, 8) // 4 samples
	out := upsamplePCM16(pcm)
	if len(out) != 16 {
		t.Errorf("len(out) = %d, want 16", len(out))
	}
}

func TestDownsamplePCM16_HalvesLength(t *testing.T) {
	pcm := make([]byte, 16) // 8 samples
	out := downsamplePCM16(pcm)
	if len(out) != 8 {
		t.Errorf("len(out) = %d, want 8", len(out))
	}
}

func TestUpsampleDownsample_RoundTripPreservesLength(t *testing.T) {
	pcm := make([]byte, 160) // 80 samples, 10ms at 8kHz
	up := upsamplePCM16(pcm)
	down := downsamplePCM16(up)
	if len(down) != len(pcm) {
		t.Errorf("round trip length = %d, want %d", len(down), len(pcm))
	}
}
