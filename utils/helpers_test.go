package utils_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/utils"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}, "jpeg"},
		{"png", []byte("\x89PNG\r\n\x1a\n settled"), "png"},
		{"gif87", []byte("GIF87a trailer"), "gif"},
		{"gif89", []byte("GIF89a trailer"), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"bmp", []byte("BM\x36\x00\x00\x00"), "bmp"},
		{"tiff little endian", []byte("II*\x00abcdef"), "tiff"},
		{"tiff big endian", []byte("MM\x00*abcdef"), "tiff"},
		{"ico", []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00}, "ico"},
		{"svg via xml prologue", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), "svg"},
		{"garbage", []byte("garbage input here"), "unknown"},
		{"empty", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := utils.DetectFormat(tt.data); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCloneBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := utils.CloneBytes(src)
	src[0] = 9
	if dst[0] != 1 {
		t.Fatal("clone must not share backing memory")
	}
	if len(utils.CloneBytes(nil)) != 0 {
		t.Fatal("nil input clones to an empty slice")
	}
}

func TestDrainReader(t *testing.T) {
	payload := strings.Repeat("x", 100_000)
	buf, err := utils.DrainReader(context.Background(), strings.NewReader(payload), 1024)
	if err != nil {
		t.Fatalf("DrainReader: %v", err)
	}
	defer utils.ReleaseBuffer(buf)
	if buf.Len() != len(payload) {
		t.Fatalf("got %d bytes, want %d", buf.Len(), len(payload))
	}
}

func TestDrainReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := utils.DrainReader(ctx, strings.NewReader("data"), 4); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLimitedReader(t *testing.T) {
	lr := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 64)), Max: 16}
	n, err := io.Copy(io.Discard, lr)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
	if n != 16 {
		t.Fatalf("read %d bytes before the cap, want 16", n)
	}

	// An input of exactly Max bytes is read in full and ends with a clean EOF.
	exact := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 16)), Max: 16}
	n, err = io.Copy(io.Discard, exact)
	if err != nil || n != 16 {
		t.Fatalf("exact-cap read: n=%d err=%v, want 16 bytes and no error", n, err)
	}

	unlimited := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 64))}
	n, err = io.Copy(io.Discard, unlimited)
	if err != nil || n != 64 {
		t.Fatalf("unlimited read: n=%d err=%v", n, err)
	}
}
