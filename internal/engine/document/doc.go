// Package document provides document identity and immutable text
// snapshots for the suggestion engine.
//
// A document's ID is derived from its URI and is the primary key into
// every per-document map in the engine. A Snapshot pairs the exact text
// at one moment with a line index that maps byte offsets to line/column
// positions and back. Snapshots are immutable: every cached suggestion
// is anchored to the snapshot it was computed from.
package document
