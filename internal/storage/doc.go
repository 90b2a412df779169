// Package storage persists the small amount of state remindbot keeps
// across restarts:
//
//   - The last committed reminder settings (so an edit made via the
//     bot survives a daemon restart even when the config file lags).
//   - A fire-history journal (feeds the daily digest and /status).
//
// The reminder engine itself never touches this package; app glue
// persists on reconfigure and restores on boot.
package storage
