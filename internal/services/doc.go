// Package services provides shared error classification and context plumbing
// used across the transcription pipeline. Sentinel markers tag failures as
// permanent or transient so the consumer can decide between retry and
// dead-letter routing without parsing message text.
package services
