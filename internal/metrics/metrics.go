// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package metrics exposes the Prometheus gauges and counters the
// reconciler loops update after each pass.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProgressBlock is the last block a chain's event loops have fully
	// applied.
	ProgressBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nftrout_progress_block",
		Help: "Last block number whose events have been applied, per chain.",
	}, []string{"chain"})

	// PendingTokens is the number of tokens observed via a spawning
	// Transfer log but not yet fully indexed (metadata still unresolved).
	PendingTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftrout_pending_tokens",
		Help: "Number of tokens with a pending row but no indexed metadata.",
	})

	// UnpinnedCids is the current backlog size for PinLoop.
	UnpinnedCids = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftrout_unpinned_cids",
		Help: "Number of CIDs known to storage but not yet pinned.",
	})

	// PinFailuresTotal counts pin attempts that did not succeed within
	// their per-CID timeout.
	PinFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftrout_pin_failures_total",
		Help: "Total number of pin attempts that failed or timed out.",
	})

	// ReconcileErrorsTotal counts reconciler loop passes that returned
	// an error, labeled by loop name.
	ReconcileErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftrout_reconcile_errors_total",
		Help: "Total number of failed reconciler loop passes, per loop.",
	}, []string{"loop"})
)
