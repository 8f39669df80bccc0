// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a blob body is compressed. Every blob starts
// with one header byte: the Compression in the low nibble and the codec in
// the high nibble.
type Compression byte

const (
	None Compression = iota
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// ParseCompression parses "none" (or "") and "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("unknown compression %q", s)
}

var errFrame = errors.New("malformed blob frame")

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// Codec ids stored in the header. Zero means the codec was not recorded and
// the reading Store's own codec applies.
const (
	codecUnknown byte = iota
	codecMsgpack
	codecJSON
	codecCBOR
)

func codecID(c Codec) byte {
	switch c.Name() {
	case "msgpack":
		return codecMsgpack
	case "json":
		return codecJSON
	case "cbor":
		return codecCBOR
	}
	return codecUnknown
}

func codecFromID(id byte, fallback Codec) (Codec, error) {
	switch id {
	case codecUnknown:
		return fallback, nil
	case codecMsgpack:
		return Msgpack, nil
	case codecJSON:
		return JSON, nil
	case codecCBOR:
		return CBOR, nil
	}
	return nil, fmt.Errorf("%w: unknown codec %d", errFrame, id)
}

func header(c Compression, codec byte) byte {
	return codec<<4 | byte(c)
}

func pack(c Compression, codec byte, raw []byte) ([]byte, error) {
	switch c {
	case None:
		out := make([]byte, 0, len(raw)+1)
		out = append(out, header(None, codec))
		return append(out, raw...), nil
	case Zstd:
		enc, _, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, []byte{header(Zstd, codec)}), nil
	}
	return nil, fmt.Errorf("unsupported %s", c)
}

// unpack returns the codec id from the header and the decompressed body.
func unpack(framed []byte) (byte, []byte, error) {
	if len(framed) == 0 {
		return 0, nil, errFrame
	}
	codec, c := framed[0]>>4, Compression(framed[0]&0x0f)
	body := framed[1:]
	switch c {
	case None:
		return codec, body, nil
	case Zstd:
		_, dec, err := zstdCoders()
		if err != nil {
			return 0, nil, err
		}
		raw, err := dec.DecodeAll(body, nil)
		return codec, raw, err
	}
	return 0, nil, fmt.Errorf("%w: unknown %s", errFrame, c)
}
