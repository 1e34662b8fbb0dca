// Package gossip contains the data structures backing the gossip
// dissemination engine: the bounded dedup cache that suppresses redundant
// rebroadcast, and the pending set that parks objects waiting on a missing
// dependency.
package gossip
