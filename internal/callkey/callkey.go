// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package callkey derives the identity of a memoized call and the hash of the
// code that produced its result.
//
// An Identity (name, module, signature, arguments hash) selects cached
// records. The code hash is kept apart from it: a record whose code hash no
// longer matches the function's current source is stale, not a different
// call.
package callkey

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"

	"github.com/staranto/memoctl/internal/callable"
)

// ErrEncoding reports a value that cannot be represented in a cache key or
// record. It is a hard failure, never treated as a miss.
var ErrEncoding = errors.New("cannot encode cache key")

// Identity is the lookup key of a call. It excludes the code hash.
type Identity struct {
	Name          string `json:"name"`
	Module        string `json:"module"`
	Signature     string `json:"signature"`
	ArgumentsHash string `json:"arguments"`
}

// Validate reports ErrEncoding if any field is empty or not valid UTF-8.
func (id Identity) Validate() error {
	fields := []struct{ name, value string }{
		{"name", id.Name},
		{"module", id.Module},
		{"signature", id.Signature},
		{"arguments", id.ArgumentsHash},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrEncoding, f.name)
		}
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrEncoding, f.name)
		}
	}
	return nil
}

// Digest is a sha256 hex over the identity fields. Stores use it as an index
// key; equal identities always have equal digests.
func (id Identity) Digest() string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, s := range []string{id.Name, id.Module, id.Signature, id.ArgumentsHash} {
		binary.LittleEndian.PutUint64(buf, uint64(len(s)))
		_, _ = h.Write(buf)
		_, _ = h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (id Identity) String() string {
	return fmt.Sprintf("%s.%s%s[%.12s]", id.Module, id.Name, id.Signature, id.ArgumentsHash)
}

// Build derives the identity of calling fn with args.
func Build(fn callable.Function, args callable.Bound) (Identity, error) {
	argsHash, err := ArgumentsHash(args)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	id := Identity{
		Name:          fn.Name(),
		Module:        fn.Module(),
		Signature:     fn.Signature(),
		ArgumentsHash: argsHash,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// detEncMode is CBOR's core deterministic encoding: map keys are sorted, so
// equal maps encode identically regardless of insertion order. Times keep
// their full precision and offset.
var detEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	if detEncMode, err = opts.EncMode(); err != nil {
		panic(err) // the options are constant
	}
}

// ArgumentsHash hashes the bound argument mapping. Nested maps, slices,
// structs and pointers are followed. Funcs, channels, structs with
// unexported fields and other values with no stable encoding fail with
// ErrEncoding.
func ArgumentsHash(args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := checkEncodable(reflect.ValueOf(args), map[uintptr]bool{}); err != nil {
		return "", err
	}
	b, err := detEncMode.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

var (
	binaryMarshalerType = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	cborMarshalerType   = reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	bigIntType          = reflect.TypeOf(big.Int{})
)

// encodesItself reports whether CBOR encodes t through a marshaler or a
// built-in rule rather than by its exported fields.
func encodesItself(t reflect.Type) bool {
	if t == timeType || t == bigIntType {
		return true
	}
	for _, m := range []reflect.Type{binaryMarshalerType, cborMarshalerType} {
		if t.Implements(m) || reflect.PointerTo(t).Implements(m) {
			return true
		}
	}
	return false
}

// checkEncodable rejects struct values whose unexported fields CBOR would
// drop, since two calls differing only there would share a key.
func checkEncodable(v reflect.Value, seen map[uintptr]bool) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if encodesItself(t) {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if seen[v.Pointer()] {
			return fmt.Errorf("%w: cyclic value of type %s", ErrEncoding, t)
		}
		seen[v.Pointer()] = true
		defer delete(seen, v.Pointer())
		return checkEncodable(v.Elem(), seen)
	case reflect.Interface:
		return checkEncodable(v.Elem(), seen)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkEncodable(iter.Key(), seen); err != nil {
				return err
			}
			if err := checkEncodable(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkEncodable(v.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Tag.Get("cbor") == "-" || (f.Tag.Get("cbor") == "" && f.Tag.Get("json") == "-") {
				continue
			}
			// Embedded structs contribute their exported fields.
			embedded := f.Anonymous && (f.Type.Kind() == reflect.Struct ||
				(f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct))
			if !f.IsExported() && !embedded {
				return fmt.Errorf("%w: %s has unexported field %s", ErrEncoding, t, f.Name)
			}
			if err := checkEncodable(v.Field(i), seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// CodeHash hashes fn's current source text. Any textual edit, including
// whitespace and comments, changes it.
func CodeHash(fn callable.Function) (string, error) {
	src, err := fn.Source()
	if err != nil {
		return "", fmt.Errorf("code hash of %s: %w", fn.Name(), err)
	}
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:]), nil
}
