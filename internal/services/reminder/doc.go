// Package reminder owns the recurring-reminder loop.
//
// # Overview
//
// The service keeps exactly one armed timer. When it fires, the
// reminder text is handed to the injected Deliverer, the next
// occurrence is recomputed from the current clock (never from the old
// deadline, so drift cannot accumulate across multi-day gaps), and the
// timer is re-armed. Enable, Disable and Reconfigure cancel and restart
// that loop atomically.
//
// # Race safety
//
// Timer callbacks are version-guarded: every arm/cancel bumps a
// generation counter and a callback that observes a different
// generation (or a disabled service) returns without acting. A timer
// firing just after Disable() is therefore absorbed silently; it is
// expected, not an error.
//
// # Failure semantics
//
// Delivery failure never stops the loop: the next natural occurrence is
// the retry. A window that admits no future occurrence parks the
// service (enabled flag retained, no timer) until Reconfigure supplies
// a valid one.
package reminder
