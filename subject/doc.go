// Package subject implements the NATS subject grammar.
//
// A subject is a series of tokens separated by '.', for example "sensors.kitchen.temp".
// Subscriptions may use two wildcards, each of which must stand alone as a token:
//
//   - `*` matches exactly one token, "sensors.*.temp" matches "sensors.kitchen.temp"
//   - `>` matches one or more trailing tokens and must be the final token,
//     "sensors.>" matches "sensors.kitchen.temp" but not "sensors"
//
// Nothing in this package allocates on success. Matching walks the pattern and the
// subject token by token and never backtracks.
package subject
