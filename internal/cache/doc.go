// Package cache keeps downloaded recitation clips so that replaying a
// verse, or moving back and forth in a range, does not hit the network
// again. It has an in-memory LRU level (L1) and a zstd compressed disk
// level (L2) that survives restarts.
package cache
