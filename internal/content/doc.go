// Package content is a client for the Reminder content API: verses,
// chapter names and the daily reminder. It also maps verses to the URLs
// of their recitation clips.
package content
