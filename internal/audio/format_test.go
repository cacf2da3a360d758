package audio

import "testing"

func TestDetectContentType(t *testing.T) {
	wav, _ := EncodeWAV([]byte{0, 0}, PCMFormat{SampleRate: 8000, Channels: 1})

	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{name: "wav", header: wav, want: "audio/wav"},
		{name: "mp3 with id3", header: []byte("ID3\x04\x00\x00\x00"), want: "audio/mpeg"},
		{name: "mp3 frame sync", header: []byte{0xFF, 0xFB, 0x90, 0x00}, want: "audio/mpeg"},
		{name: "flac", header: []byte("fLaC\x00\x00\x00\x22"), want: "audio/flac"},
		{name: "ogg", header: []byte("OggS\x00\x02"), want: "audio/ogg"},
		{name: "webm", header: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, want: "audio/webm"},
		{name: "m4a", header: []byte("\x00\x00\x00\x20ftypM4A "), want: "audio/mp4"},
		{name: "unknown", header: []byte("hello world"), want: ""},
		{name: "empty", header: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContentType(tt.header); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("file.mp3", []byte("not audio")); got != "audio/mpeg" {
		t.Errorf("Expected extension fallback audio/mpeg, got %s", got)
	}
	if got := ContentType("recording.bin", []byte("OggS")); got != "audio/ogg" {
		t.Errorf("Expected sniffed audio/ogg, got %s", got)
	}
	if got := ContentType("data.xyz", nil); got != "application/octet-stream" {
		t.Errorf("Expected octet-stream, got %s", got)
	}
	if got := ContentTypeForFilename("SPEECH.WAV"); got != "audio/wav" {
		t.Errorf("Expected case-insensitive extension match, got %s", got)
	}
}
