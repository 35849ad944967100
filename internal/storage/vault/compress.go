package vault

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/ternarybob/gazette/internal/common"
)

// levelFor picks the zlib level by text length: cheap for short texts
// where compression buys little, aggressive for long ones.
func levelFor(cfg common.VaultConfig, textLen int) int {
	switch {
	case textLen < cfg.ShortThreshold:
		return cfg.ShortCompression
	case textLen > cfg.LongThreshold:
		return cfg.LongCompression
	default:
		return cfg.CompressionLevel
	}
}

// compress deflates text at the adaptive level.
func compress(cfg common.VaultConfig, text string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, levelFor(cfg, len(text)))
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := w.Write([]byte(text)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to compress chunk text: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress inflates a stored blob. Blobs without the zlib magic byte
// are returned as-is: older writes stored raw text.
func decompress(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if blob[0] != 0x78 { // zlib magic
		return string(blob), nil
	}

	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		// Raw text can start with 0x78 ('x') too.
		return string(blob), nil
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decompress chunk text: %w", err)
	}
	return string(data), nil
}
