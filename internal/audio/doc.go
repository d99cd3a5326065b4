// Package audio plays recitation clips through the system audio device
// using oto/v3. Clips are fetched over HTTP or from disk, decoded from
// MP3 with go-mp3 and handed to oto as 16-bit stereo PCM.
package audio
