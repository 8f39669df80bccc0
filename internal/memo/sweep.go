// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/staranto/memoctl/internal/blobstore"
	"github.com/staranto/memoctl/internal/metastore"
)

// SweepReport summarizes a Reconcile.
type SweepReport struct {
	Checked int      `json:"checked"`
	Pruned  []string `json:"pruned"`
}

// Reconcile removes every record whose blob is missing. Running it again
// with no change in between prunes nothing.
func (c *Cache) Reconcile(ctx context.Context) (SweepReport, error) {
	recs, err := c.meta.FindAll(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	missing := make([]bool, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.sweepLimit)
	for i, rec := range recs {
		g.Go(func() error {
			_, err := c.blobs.Stat(gctx, rec.ID)
			if errors.Is(err, blobstore.ErrNotFound) {
				missing[i] = true
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{Checked: len(recs)}, fmt.Errorf("checking blobs: %w", err)
	}

	report := SweepReport{Checked: len(recs)}
	for i, m := range missing {
		if m {
			report.Pruned = append(report.Pruned, recs[i].ID)
		}
	}
	if len(report.Pruned) == 0 {
		return report, nil
	}

	if err := c.meta.DeleteByIDs(ctx, report.Pruned); err != nil {
		return SweepReport{Checked: len(recs)}, err
	}
	c.metrics.pruned.Add(float64(len(report.Pruned)))
	c.log.WithField("ids", report.Pruned).
		Warnf("removed %d record(s), blob(s) not found", len(report.Pruned))
	return report, nil
}

// Clear deletes every blob and then drops every record. Blobs that cannot be
// deleted are logged and skipped; the records are dropped regardless.
func (c *Cache) Clear(ctx context.Context) error {
	recs, err := c.meta.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := c.blobs.Delete(ctx, rec.ID); err != nil {
			c.log.WithError(err).Warnf("failed to delete blob %s", rec.ID)
		}
	}

	// Blobs left by interrupted stores have no record.
	ids, err := c.blobs.List(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to list blobs")
	}
	for _, id := range ids {
		if err := c.blobs.Delete(ctx, id); err != nil {
			c.log.WithError(err).Warnf("failed to delete blob %s", id)
		}
	}

	if err := c.meta.Drop(ctx); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	return nil
}

// Orphans returns the ids of blobs that no record refers to, sorted.
func (c *Cache) Orphans(ctx context.Context) ([]string, error) {
	ids, err := c.blobs.List(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := c.meta.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		known[r.ID] = struct{}{}
	}
	var orphans []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Remove deletes the named records and then their blobs. Unknown ids are
// ignored.
func (c *Cache) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.meta.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := c.blobs.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Records returns every record, oldest first.
func (c *Cache) Records(ctx context.Context) ([]metastore.Record, error) {
	recs, err := c.meta.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	metastore.SortByID(recs)
	return recs, nil
}
