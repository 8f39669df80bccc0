// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &CustomHandler{W: &buf}

	e := &log.Entry{
		Level:     log.WarnLevel,
		Message:   "caching failed",
		Timestamp: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		Fields:    log.Fields{"op": "write", "name": "square"},
	}
	require.NoError(t, h.HandleLog(e))
	assert.Equal(t, "2025-03-04 05:06:07 W caching failed name=square op=write\n", buf.String())
}

func TestInitLogger(t *testing.T) {
	defer log.SetLevel(log.ErrorLevel)

	t.Setenv(EnvLevel, "debug")
	InitLogger()
	assert.Equal(t, log.DebugLevel, log.Log.(*log.Logger).Level)

	t.Setenv(EnvLevel, "bogus")
	InitLogger()
	assert.Equal(t, log.ErrorLevel, log.Log.(*log.Logger).Level)
}
