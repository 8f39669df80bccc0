// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/staranto/memoctl/internal/blobstore"
	"github.com/staranto/memoctl/internal/output"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

// OneOf returns a validator accepting only the given strings.
func OneOf(valid ...string) FlagValidatorType {
	return func(value any) error {
		if !slices.Contains(valid, value.(string)) {
			return fmt.Errorf("must be one of %v", valid)
		}
		return nil
	}
}

func OutputValidator(value any) error {
	return OneOf(output.Formats...)(value)
}

func CodecValidator(value any) error {
	_, err := blobstore.CodecByName(value.(string))
	return err
}

func CompressionValidator(value any) error {
	_, err := blobstore.ParseCompression(value.(string))
	return err
}
