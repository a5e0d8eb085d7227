// Package cache keeps computed next-edit suggestions alive as the user
// continues typing.
//
// Two structures cooperate. A shared fixed-capacity LRU holds at most one
// entry per (document, exact text) key across all open documents; hitting
// it means the document has not changed since the suggestion was
// computed. A per-document tracker separately lists the entries that
// still carry a live record of the user's edits since their snapshot
// (userEditSince); on an exact miss those entries are candidates for
// rebasing the cached suggestion onto the current text instead of
// refetching.
//
// Eviction from the shared LRU notifies the tracker, which detaches the
// entry idempotently. The two lifecycles are otherwise independent.
package cache
