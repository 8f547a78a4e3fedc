// Package audio packages synthesized speech and estimates its duration.
package audio

import (
	"encoding/base64"
)

// MIMETypeMPEG is the MIME type of the provider's MP3 output.
const MIMETypeMPEG = "audio/mpeg"

// Format is an audio container format.
type Format string

// FormatMP3 is the only format the provider is asked for.
const FormatMP3 Format = "mp3"

// Extension returns the file extension for the format, with the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Audio is a synthesized clip. It is owned by whoever received it.
type Audio struct {
	Data            []byte
	MIMEType        string
	Format          Format
	DurationSeconds float64
}

// NewMP3 wraps MP3 bytes and estimates their duration.
func NewMP3(data []byte) *Audio {
	return &Audio{
		Data:            data,
		MIMEType:        MIMETypeMPEG,
		Format:          FormatMP3,
		DurationSeconds: EstimateDuration(data, MIMETypeMPEG),
	}
}

// Base64 returns the audio bytes base64 encoded.
func (a *Audio) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DataURL returns the audio as a data URL suitable for an <audio> element.
func (a *Audio) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + a.Base64()
}
