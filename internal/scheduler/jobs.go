// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import "context"

// BackendHealthJob is the name the backend health check is registered under.
const BackendHealthJob = "backend-health"

// Pinger reports whether the backend answers.
type Pinger interface {
	Health(ctx context.Context) error
}

// UpGauge records backend reachability.
type UpGauge interface {
	SetBackendUp(up bool)
}

// BackendHealthCheck returns a job that pings the backend and records the result.
func BackendHealthCheck(p Pinger, gauge UpGauge) Job {
	return func(ctx context.Context) error {
		err := p.Health(ctx)
		gauge.SetBackendUp(err == nil)
		return err
	}
}
