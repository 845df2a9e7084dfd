// Package sensor keeps the persistent registry of Structure Core sensors.
//
// The registry records every sensor the service has seen, its firmware,
// its last lifecycle state and a history of routed capture events. It sits
// beside the adapter core rather than inside it: the core's Router
// notifies the registry, and the registry persists on its own goroutine so
// the dispatch goroutine never waits on SQLite.
//
// Architecture:
//
//	structure.Router ──Notification──► Registry.HandleNotification
//	                                        │ (bounded queue)
//	                                        ▼
//	                                  worker goroutine
//	                                   │            │
//	                                   ▼            ▼
//	                           Repository   EventHistoryRepository
//	                           (sensors)      (sensor_events)
//
// Thread Safety:
//   - Registry methods are safe for concurrent use.
//   - Repositories are safe for concurrent use through database/sql.
package sensor
