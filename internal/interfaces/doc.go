// Package interfaces documents the core abstractions used throughout the catalog.
//
// This package consolidates interface documentation to show the extension
// points and how the pieces plug together.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - Executor: Scoped connections and transactions (internal/database/database.go)
//   - Store: Persist and prune activity entries (internal/activity/service.go)
//
// ## Background Work Interfaces
//
//   - Sink: Destination of background activity writes (internal/activity/service.go)
//   - ActivityPruner: Retention pruning (internal/tasks/prune_activity.go)
//   - Enqueuer: Durable task submission (internal/scheduler/retention.go)
//
// ## Operational Interfaces
//
//   - Pinger: Health checks (internal/http/health.go)
//
// # Adding a New Repository
//
//  1. Add the table to internal/database/schema.sql and the entity to
//     internal/entities/.
//
//  2. Create internal/database/<domain>/repository.go accepting a
//     database.Executor.
//
//  3. Use Transaction for anything touching more than one table, and
//     translate every error with database.Translate.
//
// A minimal repository:
//
//	type Repository struct {
//		pool database.Executor
//	}
//
//	func (r *Repository) Get(ctx context.Context, id int64) (*entities.Review, error) {
//		var review entities.Review
//		err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
//			return db.Take(&review, id).Error
//		})
//		if err != nil {
//			return nil, database.Translate("get", "reviews", err)
//		}
//		return &review, nil
//	}
//
// # Adding a New Activity Destination
//
// Implement activity.Sink and pass it with activity.WithSink. Sinks receive
// immutable entries from the background workers; returned errors are logged
// and counted, never retried.
//
// # Compile-time Checks
//
// checks.go asserts that every concrete type satisfies the interfaces it is
// wired through.
package interfaces
