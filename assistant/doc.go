// Package assistant implements conversation management.
//
// A conversation moves through three states per id: absent, created, and
// has-messages. Create establishes instructions (recreating an id resets
// it), Post appends a user turn and schedules reply generation on a worker
// pool, and State serves the latest message at or before an optional
// timestamp bound. Post acknowledges before the reply exists; clients poll
// State until the assistant message appears.
package assistant
