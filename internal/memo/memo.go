// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/staranto/memoctl/internal/blobstore"
	"github.com/staranto/memoctl/internal/callable"
	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/metastore"
)

// ErrTarget reports a Run target that cannot receive the result.
var ErrTarget = errors.New("invalid result target")

// Status classifies the cached state of a call.
type Status int

const (
	// Miss means no record exists for the call.
	Miss Status = iota
	// Hit means a record with the current code hash and its blob were found.
	Hit
	// StaleCode means records exist but were computed by different source.
	StaleCode
	// MissingBlob means a current record exists but its blob does not.
	MissingBlob
)

func (s Status) String() string {
	switch s {
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case StaleCode:
		return "stale_code"
	case MissingBlob:
		return "missing_blob"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome describes how Run produced its value.
type Outcome struct {
	Status Status
	// ID is the record holding the returned value. It is empty when a computed
	// value could not be cached.
	ID string
	// Warning is set when a computed value could not be cached. The value is
	// still valid.
	Warning *CacheFailWarning
}

// Cache memoizes function results in a metadata store and a blob store. It
// holds no locks across calls; concurrent misses for one call may both
// compute and both be stored.
type Cache struct {
	meta    metastore.Store
	blobs   *blobstore.Store
	log     log.Interface
	onWarn  func(*CacheFailWarning)
	metrics *metrics
	reg     prometheus.Registerer
	// sweepLimit bounds concurrent blob checks during Reconcile.
	sweepLimit int
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Defaults to log.Log.
func WithLogger(l log.Interface) Option {
	return func(c *Cache) { c.log = l }
}

// WithWarningHandler registers fn to receive every CacheFailWarning, in
// addition to it being logged and returned.
func WithWarningHandler(fn func(*CacheFailWarning)) Option {
	return func(c *Cache) { c.onWarn = fn }
}

// WithRegisterer registers the cache's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) { c.reg = reg }
}

// WithSweepConcurrency bounds the blob checks Reconcile runs at once.
func WithSweepConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.sweepLimit = n
		}
	}
}

// New returns a cache over the given stores. The caller keeps ownership of
// both and closes them.
func New(meta metastore.Store, blobs *blobstore.Store, opts ...Option) *Cache {
	c := &Cache{
		meta:       meta,
		blobs:      blobs,
		log:        log.Log,
		metrics:    newMetrics(),
		sweepLimit: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reg != nil {
		c.metrics.register(c.reg, c.log)
	}
	return c
}

func (c *Cache) Meta() metastore.Store    { return c.meta }
func (c *Cache) Blobs() *blobstore.Store { return c.blobs }

// LookupResult is what Lookup found for a call.
type LookupResult struct {
	Status Status
	// Record is the newest record for the call, if any.
	Record *metastore.Record
	// CodeHash is the function's current code hash.
	CodeHash string
}

// Lookup classifies the cached state of calling fn with identity id. On a Hit
// the cached value has been decoded into target, a non-nil pointer. A blob
// read failure other than blobstore.ErrNotFound is returned as an error.
func (c *Cache) Lookup(ctx context.Context, fn callable.Function, id callkey.Identity, target any) (LookupResult, error) {
	tv, err := targetValue(target)
	if err != nil {
		return LookupResult{}, err
	}
	return c.lookup(ctx, fn, id, tv)
}

func (c *Cache) lookup(ctx context.Context, fn callable.Function, id callkey.Identity, target reflect.Value) (LookupResult, error) {
	code, err := callkey.CodeHash(fn)
	if err != nil {
		return LookupResult{}, err
	}
	res := LookupResult{Status: Miss, CodeHash: code}

	rec, err := c.meta.FindOne(ctx, id)
	if err != nil {
		return res, fmt.Errorf("looking up %s: %w", id, err)
	}
	if rec == nil {
		return res, nil
	}
	res.Record = rec

	if rec.CodeHash != code {
		res.Status = StaleCode
		return res, nil
	}

	fresh := reflect.New(target.Type().Elem())
	err = c.blobs.Get(ctx, rec.ID, fresh.Interface())
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		res.Status = MissingBlob
		return res, nil
	case err != nil:
		return res, fmt.Errorf("loading cached result of %s: %w", id, err)
	}
	target.Elem().Set(fresh.Elem())
	res.Status = Hit
	return res, nil
}

// Run returns the result of calling fn with args, from the cache when a valid
// result is stored and by invoking fn otherwise. The result is assigned to
// target, a non-nil pointer to a concrete type. Interface targets are
// rejected with ErrTarget since no codec restores the dynamic type; interface
// fields inside a struct target still decode to the codec's generic types.
//
// Errors returned by fn are returned unchanged and nothing is cached. Key
// encoding and lookup failures are returned as errors. Failures while
// storing a computed result are not: the value is still assigned and the
// failure is reported in Outcome.Warning.
func (c *Cache) Run(ctx context.Context, fn callable.Function, target any, args ...any) (Outcome, error) {
	tv, err := targetValue(target)
	if err != nil {
		return Outcome{}, err
	}
	bound, err := callable.Bind(fn, args...)
	if err != nil {
		return Outcome{}, err
	}
	id, err := callkey.Build(fn, bound)
	if err != nil {
		return Outcome{}, err
	}

	lk, err := c.lookup(ctx, fn, id, tv)
	if err != nil {
		return Outcome{Status: lk.Status}, err
	}
	c.metrics.lookups.WithLabelValues(lk.Status.String()).Inc()

	logger := c.log.WithFields(log.Fields{"name": id.Name, "module": id.Module})
	switch lk.Status {
	case Hit:
		logger.Debugf("cache hit %s", lk.Record.ID)
		return Outcome{Status: Hit, ID: lk.Record.ID}, nil
	case MissingBlob:
		logger.Debugf("blob %s not found, reconciling", lk.Record.ID)
		if _, err := c.Reconcile(ctx); err != nil {
			logger.WithError(err).Warn("reconcile failed")
		}
	case StaleCode:
		logger.Debugf("code changed since record %s", lk.Record.ID)
	case Miss:
		logger.Debug("no cached result")
	}

	result, err := fn.Invoke(ctx, bound)
	if err != nil {
		return Outcome{Status: lk.Status}, err
	}
	if err := assign(tv, result); err != nil {
		return Outcome{Status: lk.Status}, err
	}

	out := Outcome{Status: lk.Status}
	out.ID, out.Warning = c.store(ctx, id, lk.CodeHash, result)
	return out, nil
}

// store writes a computed result. The blob is encoded before the record is
// inserted, so an unserializable result leaves nothing behind.
func (c *Cache) store(ctx context.Context, id callkey.Identity, code string, result any) (string, *CacheFailWarning) {
	framed, err := c.blobs.Encode(result)
	if err != nil {
		return "", c.warn(&CacheFailWarning{Op: OpEncode, Identity: id, Err: err})
	}

	rid, err := c.meta.Insert(ctx, metastore.Record{Identity: id, CodeHash: code})
	if err != nil {
		return "", c.warn(&CacheFailWarning{Op: OpInsert, Identity: id, Err: err})
	}

	if err := c.blobs.Write(ctx, rid, framed); err != nil {
		// Leave no record pointing at a missing blob if it can be helped.
		if derr := c.meta.DeleteByIDs(ctx, []string{rid}); derr != nil {
			c.log.WithError(derr).Debugf("failed to remove record %s", rid)
		}
		return "", c.warn(&CacheFailWarning{Op: OpWrite, Identity: id, ID: rid, Err: err})
	}
	return rid, nil
}

func (c *Cache) warn(w *CacheFailWarning) *CacheFailWarning {
	c.metrics.storeFailures.Inc()
	c.log.WithFields(log.Fields{
		"name":   w.Identity.Name,
		"module": w.Identity.Module,
		"op":     w.Op,
	}).WithError(w.Err).Warn("caching failed")
	if c.onWarn != nil {
		c.onWarn(w)
	}
	return w
}

// Do is Run for callers that know the result type.
func Do[T any](ctx context.Context, c *Cache, fn callable.Function, args ...any) (T, Outcome, error) {
	var v T
	out, err := c.Run(ctx, fn, &v, args...)
	return v, out, err
}

func targetValue(target any) (reflect.Value, error) {
	tv := reflect.ValueOf(target)
	if tv.Kind() != reflect.Pointer || tv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: want a non-nil pointer, got %T", ErrTarget, target)
	}
	if tv.Elem().Kind() == reflect.Interface {
		return reflect.Value{}, fmt.Errorf("%w: %s is an interface; cached results need a concrete type", ErrTarget, tv.Elem().Type())
	}
	return tv, nil
}

func assign(target reflect.Value, result any) error {
	elem := target.Elem()
	if result == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	rv := reflect.ValueOf(result)
	if !rv.Type().AssignableTo(elem.Type()) {
		return fmt.Errorf("%w: result of type %s is not assignable to %s", ErrTarget, rv.Type(), elem.Type())
	}
	elem.Set(rv)
	return nil
}
