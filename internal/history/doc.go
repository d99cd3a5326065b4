// Package history persists the listening history and the player
// preferences in a bbolt database.
package history
