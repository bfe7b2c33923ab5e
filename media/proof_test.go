package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngOf(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestSavePaymentProof(t *testing.T) {
	dir := t.TempDir()

	path, err := SavePaymentProof(dir, "reg123", pngOf(t, 2000, 100))
	if err != nil {
		t.Fatalf("SavePaymentProof: %v", err)
	}
	if path != "/paymentproofs/reg123.jpg" {
		t.Fatalf("path = %q", path)
	}

	f, err := os.Open(filepath.Join(dir, "paymentproofs", "reg123.jpg"))
	if err != nil {
		t.Fatalf("open saved proof: %v", err)
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		t.Fatalf("decode saved proof: %v", err)
	}
	if cfg.Width != maxProofWidth {
		t.Fatalf("width = %d, want %d", cfg.Width, maxProofWidth)
	}
	if _, err := os.Stat(filepath.Join(dir, "paymentproofs", "thumb", "reg123.jpg")); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}

	RemovePaymentProof(dir, path)
	if _, err := os.Stat(filepath.Join(dir, "paymentproofs", "reg123.jpg")); !os.IsNotExist(err) {
		t.Fatalf("proof not removed: %v", err)
	}
}

func TestSavePaymentProofRejectsGarbage(t *testing.T) {
	_, err := SavePaymentProof(t.TempDir(), "x", strings.NewReader("not an image"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}
