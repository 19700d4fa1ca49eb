package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestRoundTripAllLengths(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 300; n++ {
		src := make([]byte, n)
		for i := range src {
			// Cover every byte value, including NUL and high bytes.
			src[i] = byte(i*37 + n)
		}

		text := make([]byte, EncodedLen(n))
		w, err := Encode(text, src)
		if err != nil {
			t.Fatalf("len %d: Encode failed: %v", n, err)
		}
		if want := base64.StdEncoding.EncodeToString(src); string(text[:w]) != want {
			t.Fatalf("len %d: Encode = %q, want %q", n, text[:w], want)
		}

		out := make([]byte, DecodedLen(w))
		r, err := Decode(out, string(text[:w]))
		if err != nil {
			t.Fatalf("len %d: Decode failed: %v", n, err)
		}
		if !bytes.Equal(out[:r], src) {
			t.Fatalf("len %d: round trip mismatch", n)
		}
	}
}

func TestDecodeKnownVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Zg==", "f"},
		{"Zm8=", "fo"},
		{"Zm9v", "foo"},
		{"Zm9vYg==", "foob"},
		{"Zm9vYmE=", "fooba"},
		{"Zm9vYmFy", "foobar"},
	}
	for _, tt := range tests {
		got, err := DecodeString(tt.in)
		if err != nil {
			t.Errorf("DecodeString(%q) error: %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("DecodeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"length not multiple of 4", "Zm9"},
		{"single char", "Z"},
		{"illegal char", "Zm9*"},
		{"whitespace", "Zm9v\nYmFy"},
		{"url alphabet", "Zm9-"},
		{"pad first", "=m9v"},
		{"pad second", "Z=9v"},
		{"pad hole", "Zm=v"},
		{"pad in middle quartet", "Zg==Zm9v"},
		{"high byte", "Zm9\xff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
			n, err := Decode(dst, tt.in)
			if !errors.Is(err, ErrInvalidEncoding) {
				t.Fatalf("Decode(%q) err = %v, want ErrInvalidEncoding", tt.in, err)
			}
			if n != 0 {
				t.Errorf("Decode(%q) n = %d, want 0", tt.in, n)
			}
			for i, b := range dst {
				if b != 0xAA {
					t.Fatalf("Decode(%q) wrote byte %d on failure", tt.in, i)
				}
			}
		})
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	t.Parallel()

	// "Zm9vYmFy" decodes to 6 bytes; give it 5.
	dst := make([]byte, 5)
	_, err := Decode(dst, "Zm9vYmFy")
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Error("ErrShortBuffer should wrap ErrInvalidEncoding")
	}
	if !bytes.Equal(dst, make([]byte, 5)) {
		t.Error("destination modified on failure")
	}

	// Exact fit with padding must succeed even though a full quartet
	// would not fit.
	dst = make([]byte, 4)
	n, err := Decode(dst, "Zm9vYg==")
	if err != nil || n != 4 || string(dst) != "foob" {
		t.Errorf("exact fit: n=%d err=%v dst=%q", n, err, dst)
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	t.Parallel()

	_, err := Encode(make([]byte, 3), []byte("f"))
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestEncodedAndDecodedLen(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ n, enc int }{{0, 0}, {1, 4}, {2, 4}, {3, 4}, {4, 8}, {15, 20}} {
		if got := EncodedLen(tt.n); got != tt.enc {
			t.Errorf("EncodedLen(%d) = %d, want %d", tt.n, got, tt.enc)
		}
		if got := DecodedLen(tt.enc); got < tt.n {
			t.Errorf("DecodedLen(%d) = %d, below %d", tt.enc, got, tt.n)
		}
	}
}
