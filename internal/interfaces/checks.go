package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/catalog/internal/activity"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/database/logs"
	"github.com/mrlokans/catalog/internal/http"
	"github.com/mrlokans/catalog/internal/scheduler"
	"github.com/mrlokans/catalog/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Executor implementations
var _ database.Executor = (*database.Pool)(nil)

// Activity Store implementations
var _ activity.Store = (*logs.Repository)(nil)

// =============================================================================
// Activity Sinks
// =============================================================================

var _ activity.Sink = activity.StoreSink{}
var _ activity.Sink = (*tasks.ActivitySink)(nil)

// =============================================================================
// Background Work
// =============================================================================

// ActivityPruner implementations
var _ tasks.ActivityPruner = (*activity.Service)(nil)

// Enqueuer implementations
var _ scheduler.Enqueuer = (*tasks.Client)(nil)

// Health check implementations
var _ http.Pinger = (*database.Pool)(nil)
