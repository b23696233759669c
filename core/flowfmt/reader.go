package flowfmt

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/arkohler/atp/core/flow"
)

// Read reads a stored flow from r and returns the rehydrated flow and the
// body hash. The hash is recomputed from the bytes read, so a caller
// comparing it against a recorded hash detects any tampering with the
// body.
func Read(r io.Reader) (*flow.Flow, [32]byte, error) {
	var preamble [16]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read preamble: %w", err)
	}

	magic := string(preamble[0:4])
	if magic != Magic {
		return nil, [32]byte{}, fmt.Errorf("invalid magic: got %q, expected %q", magic, Magic)
	}

	version := binary.LittleEndian.Uint16(preamble[4:6])
	if version != Version {
		return nil, [32]byte{}, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}

	flags := Flags(binary.LittleEndian.Uint16(preamble[6:8]))
	if flags != 0 {
		return nil, [32]byte{}, fmt.Errorf("unsupported flags: 0x%04x", uint16(flags))
	}

	bodyLen := binary.LittleEndian.Uint64(preamble[8:16])
	if bodyLen > maxBodyLen {
		return nil, [32]byte{}, fmt.Errorf("body length %d exceeds maximum %d", bodyLen, maxBodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read body: %w", err)
	}

	doc, err := unmarshalBody(body)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse body: %w", err)
	}
	if doc.Version != 1 {
		return nil, [32]byte{}, fmt.Errorf("unsupported document version %d", doc.Version)
	}

	root, err := fromWireNode(&doc.Root, 0)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse tree: %w", err)
	}

	return flow.Rehydrate(doc.Name, doc.Program, root), blake2b.Sum256(body), nil
}
