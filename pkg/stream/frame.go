package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	frameVersion    byte = 1
	frameHeaderSize int  = 6
)

type frameType byte

const (
	frameMessage frameType = 0x01
	frameClose   frameType = 0x02
)

type frame struct {
	typ     frameType
	payload []byte
}

// Layout: [1 version][1 type][4 payload length][payload].
func encodeFrame(f frame) ([]byte, error) {
	size, err := frameLength(len(f.payload))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, frameHeaderSize+len(f.payload))
	buf[0] = frameVersion
	buf[1] = byte(f.typ)
	binary.BigEndian.PutUint32(buf[2:6], size)
	copy(buf[frameHeaderSize:], f.payload)

	return buf, nil
}

func frameLength(n int) (uint32, error) {
	if uint64(n) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadOverflow, n)
	}

	return uint32(n), nil
}

func readFrame(r io.Reader) (frame, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, err
	}

	if header[0] != frameVersion {
		return frame{}, fmt.Errorf("%w: version %d", ErrInvalidFrame, header[0])
	}

	typ := frameType(header[1])
	if typ != frameMessage && typ != frameClose {
		return frame{}, fmt.Errorf("%w: type %d", ErrInvalidFrame, typ)
	}

	payload := make([]byte, binary.BigEndian.Uint32(header[2:6]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}

	return frame{typ: typ, payload: payload}, nil
}
