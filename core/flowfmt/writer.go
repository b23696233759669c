package flowfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/arkohler/atp/core/flow"
	"github.com/arkohler/atp/core/passes"
)

// Write validates f, assigns IDs to every statement that lacks one, and
// writes the resulting unoptimized tree to w.
//
// Format: MAGIC(4) | VERSION(2) | FLAGS(2) | BODY_LEN(8) | BODY
//
// Returns the BLAKE2b-256 hash of the body. The preamble is excluded so
// the hash depends only on flow content, never on format framing.
func Write(w io.Writer, f *flow.Flow) ([32]byte, error) {
	root := passes.PreClean(f.Raw())
	if err := passes.Validate(root); err != nil {
		return [32]byte{}, err
	}
	root = passes.AssignIDs(root, "")

	doc := &wireFlow{
		Version: 1,
		Name:    f.Name(),
		Program: f.Program(),
		Root:    toWireNode(root),
	}
	body, err := marshalBody(doc)
	if err != nil {
		return [32]byte{}, err
	}
	if len(body) > maxBodyLen {
		return [32]byte{}, fmt.Errorf("body length %d exceeds maximum %d", len(body), maxBodyLen)
	}

	digest := blake2b.Sum256(body)

	var preamble bytes.Buffer
	preamble.WriteString(Magic)
	if err := binary.Write(&preamble, binary.LittleEndian, Version); err != nil {
		return [32]byte{}, err
	}
	if err := binary.Write(&preamble, binary.LittleEndian, uint16(Flags(0))); err != nil {
		return [32]byte{}, err
	}
	if err := binary.Write(&preamble, binary.LittleEndian, uint64(len(body))); err != nil {
		return [32]byte{}, err
	}

	if _, err := w.Write(preamble.Bytes()); err != nil {
		return [32]byte{}, err
	}
	if _, err := w.Write(body); err != nil {
		return [32]byte{}, err
	}
	return digest, nil
}
