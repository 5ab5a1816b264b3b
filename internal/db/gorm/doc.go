// Package gorm is the GORM persistence layer of activable: the Store
// connection over PostgreSQL or SQLite, its migrations, and a small adopting
// domain whose stores remove rows through the activable protocol.
//
// Projects own sessions; sessions own observations and summaries. Removing a
// project removes its active sessions, and each session removes its active
// observations, in the same transaction. Summaries carry no removal marker
// and are left in place.
//
//	store, err := gorm.NewStore(gorm.Config{Driver: gorm.DriverSQLite, DSN: path})
//	stores, err := gorm.NewStores(store)
//	err = stores.Projects.Remove(ctx, projectID)
package gorm
