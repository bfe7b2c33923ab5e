package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	proofDir      = "paymentproofs"
	maxProofWidth = 1600
	thumbWidth    = 300
)

// SupportedImageTypes lists the upload content types accepted as payment proof.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// SavePaymentProof decodes an uploaded image, caps its width, writes it and a
// thumbnail under uploadDir and returns the public path of the full image.
func SavePaymentProof(uploadDir, name string, src io.Reader) (string, error) {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() > maxProofWidth {
		img = imaging.Resize(img, maxProofWidth, 0, imaging.Lanczos)
	}

	dir := filepath.Join(uploadDir, proofDir)
	thumbDir := filepath.Join(dir, "thumb")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	fileName := filepath.Base(name) + ".jpg"
	if err := imaging.Save(img, filepath.Join(dir, fileName), imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(thumbDir, fileName)); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return "/" + proofDir + "/" + fileName, nil
}

// RemovePaymentProof deletes a stored proof and its thumbnail. Missing files are ignored.
func RemovePaymentProof(uploadDir, publicPath string) {
	fileName := filepath.Base(publicPath)
	_ = os.Remove(filepath.Join(uploadDir, proofDir, fileName))
	_ = os.Remove(filepath.Join(uploadDir, proofDir, "thumb", fileName))
}
