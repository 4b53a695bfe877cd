// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package concurrent provides a small worker pool over errgroup for running
// independent functions in parallel.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs concurrently with a bounded number of goroutines.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool limited to workerCount concurrent goroutines.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// Run executes all functions and returns the first error encountered,
// cancelling the remaining work. Use this when the results are
// all-or-nothing, e.g. minting a booking's token pair.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			return fn()
		})
	}

	return g.Wait()
}

// RunAll executes all functions without cancellation on error and returns
// every non-nil error. Use this for best-effort batches, e.g. the expired
// room cleanup sweep, where one failure must not stop the rest.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	errChan := make(chan error, len(functions))

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return nil
			default:
			}
			if err := fn(); err != nil {
				errChan <- err
			}
			return nil
		})
	}

	_ = g.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errs
}
