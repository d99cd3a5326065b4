// Package remote exposes a Player over a websocket so that other
// programs can drive it and follow its state.
//
// Every message is a JSON object {"op": n, "d": ...}. A client sends
// OpIdentify first and receives OpReady with its session id followed by
// an OpPlayerUpdate. From then on it receives an OpPlayerUpdate for
// every state change of the player.
package remote
