// Package server implements a local mock of the inference API used to run the
// chat, transcription and image flows without network access.
package server
