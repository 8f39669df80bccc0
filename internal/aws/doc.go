// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package aws loads AWS SDK configuration and builds the S3 client used by
// the S3 blob bucket.
package aws
