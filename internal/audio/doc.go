// Package audio recognizes the audio containers accepted by the transcription
// endpoint and wraps raw 16-bit PCM into WAV before upload.
package audio
