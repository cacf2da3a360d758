package audio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// SniffLen is the number of leading bytes DetectContentType looks at
const SniffLen = 16

var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
}

// DetectContentType returns the MIME type of an audio file from its leading
// bytes, or "" when the container is not recognized
func DetectContentType(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "audio/wav"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "audio/mpeg"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return "audio/mpeg"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "audio/flac"
	case bytes.HasPrefix(header, []byte("OggS")):
		return "audio/ogg"
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "audio/webm"
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "audio/mp4"
	default:
		return ""
	}
}

// ContentTypeForFilename maps a file extension to an audio MIME type,
// defaulting to application/octet-stream
func ContentTypeForFilename(name string) string {
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ContentType prefers the sniffed type and falls back to the file extension
func ContentType(name string, header []byte) string {
	if ct := DetectContentType(header); ct != "" {
		return ct
	}
	return ContentTypeForFilename(name)
}
