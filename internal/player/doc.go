// Package player implements the sequential recitation player: an Arabic
// clip followed by its English translation, played as one session over two
// independently loaded transports.
//
// The Player owns the session state machine. Transports only move audio;
// they report time, metadata and end-of-stream through events and never
// decide what plays next.
package player
