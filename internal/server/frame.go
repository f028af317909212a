package server

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen caps a frame payload. The two-byte length header cannot
// declare more than this, so a conforming peer can never overrun it.
const MaxFrameLen = 1<<16 - 1

// ReadFrame reads one length-prefixed frame: a two-byte little-endian
// length followed by that many bytes of UTF-8 JSON. A clean EOF
// between frames surfaces as io.EOF; a connection cut mid-frame as a
// wrapped io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated frame header: %w", err)
		}
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(hdr[:]))
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("truncated frame: declared %d bytes: %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return fmt.Errorf("payload of %d bytes exceeds frame limit %d", len(payload), MaxFrameLen)
	}
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
