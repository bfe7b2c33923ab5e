package tickets

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// NewTicketID returns an opaque, unique ticket identifier.
func NewTicketID() string {
	return "TKT-" + uuid.NewString()
}

// GenerateArtifact renders ticketID as a PNG QR code for scanning at the door.
func GenerateArtifact(ticketID string) ([]byte, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("empty ticket id")
	}
	png, err := qrcode.Encode(ticketID, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", ticketID, err)
	}
	return png, nil
}

// DataURL embeds a PNG in a data: URL for JSON responses.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
