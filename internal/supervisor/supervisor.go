// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package supervisor joins the reconciler loops and the read API into
// one group: the first task to return an error (or panic) cancels the
// rest.
package supervisor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is one long-running loop to supervise, named for logging.
type Task struct {
	Name string
	Run  func(context.Context) error
}

// Run starts every task under a shared errgroup.Group. It blocks until
// ctx is cancelled or one task returns a non-nil error, then waits for
// every other task to unwind before returning that error. A panic
// inside a task is recovered, logged, and converted to an error so the
// group's cancellation still fires for the other tasks; once every
// task has unwound, the original panic value is re-raised so it
// surfaces exactly as an unsupervised panic would.
func Run(ctx context.Context, log *zap.Logger, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)

	var panicValue any
	for _, task := range tasks {
		task := task
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Error("task panicked", zap.String("task", task.Name), zap.Any("panic", p))
					if panicValue == nil {
						panicValue = p
					}
					err = fmt.Errorf("task %s panicked: %v", task.Name, p)
				}
			}()
			log.Info("task starting", zap.String("task", task.Name))
			err = task.Run(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error("task failed", zap.String("task", task.Name), zap.Error(err))
			}
			return err
		})
	}

	err := g.Wait()
	if panicValue != nil {
		panic(panicValue)
	}
	return err
}
