// Package recognize turns audio clips into timed text. It offers a
// subprocess backend for whisper-style CLIs and an OpenAI-compatible API
// backend, plus the sentence assembler that rewrites long recognized blocks
// into sentence-sized segments.
package recognize
