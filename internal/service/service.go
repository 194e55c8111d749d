// Package service contains the business rules of the API.
//
// LAYERS:
//
//	Handler (HTTP)    → parses requests, writes responses
//	Service (rules)   → validates, enforces invariants, orchestrates
//	Repository (data) → reads and writes rows
//
// Services take and return plain Go values and domain errors from
// apperror; they know nothing about HTTP. Each one depends on repository
// interfaces, so tests swap in in-memory fakes and production wires
// sqlstore or redisstore.
package service
