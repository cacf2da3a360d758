// Package transcription implements the audio transcription flow. It uploads an
// audio file with its model identifier as multipart form data and returns the
// JSON transcript.
package transcription
