package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Stream framing used by the device link: two magic bytes followed by a
// big-endian 16-bit payload length. Bytes outside a frame are discarded,
// which lets the reader resync after serial noise.
const (
	frameStart1 = 0x94
	frameStart2 = 0xc3

	maxFrameSize = 512
)

// writeFrame writes one framed payload.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame payload %d bytes exceeds maximum %d", len(payload), maxFrameSize)
	}

	header := []byte{frameStart1, frameStart2, 0, 0}
	binary.BigEndian.PutUint16(header[2:], uint16(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

// readFrame reads the next framed payload, skipping any noise bytes that
// precede the frame magic.
func readFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart1 {
			continue
		}

		b, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart2 {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, err
		}
		size := int(binary.BigEndian.Uint16(lenBuf[:]))
		if size > maxFrameSize {
			// Corrupt length, treat the magic as noise and resync.
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}
