// Package job implements send-job lifecycle management.
//
// The service layer owns all business logic for creating, editing, and
// dispatching jobs. It depends on repository interfaces defined in this
// package and on the dispatch orchestrator; it never imports from api/.
//
// Repository implementations live in repository/postgres/.
package job
