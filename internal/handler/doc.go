// Package handler discovers, validates and registers the bot's command and
// event handlers.
//
// Handlers are described by manifest files (yaml, toml or json) placed in
// handler locations. A manifest names an action key; the executable action
// behind that key comes from a Catalog populated at compile time. Discover
// scans the configured locations once at startup:
//
//   - a location that cannot be read aborts discovery (ErrLocation);
//   - a manifest that fails to parse, fails schema validation or names an
//     unknown action is skipped and logged;
//   - commands are keyed by name, last registration wins;
//   - events are kept in scan order, duplicates included.
//
// The resulting Registry is immutable and safe for concurrent reads.
package handler
