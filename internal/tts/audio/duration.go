package audio

import (
	"encoding/binary"
	"strings"
)

// MPEG frame constants. Only the fields needed for a duration estimate are decoded.
const (
	samplesPerFrame  = 1152
	frameHeaderBytes = 4
	syncByte         = 0xFF
	syncMask         = 0xE0
	bitsPerByte      = 8

	versionReserved = 1
	layerIII        = 1
	bitrateFree     = 0
	bitrateBad      = 15

	// FallbackBitrate is the assumed constant bitrate, in bits per second, when no
	// frame can be decoded.
	FallbackBitrate = 128000
	// MinDurationSeconds is the floor for the size-based fallback.
	MinDurationSeconds = 0.1
)

var (
	sampleRates  = [3]int{44100, 48000, 32000}
	bitratesKbps = [14]int{32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}
)

type frameHeader struct {
	sampleRate int
	frameSize  int
}

// EstimateDuration returns an approximate playback duration in seconds. For MPEG
// audio it sums the duration of every frame it can decode; otherwise, or when no
// frame decodes, it falls back to the byte size at FallbackBitrate. It never fails
// and never returns less than MinDurationSeconds.
func EstimateDuration(data []byte, mimeType string) float64 {
	if isMPEG(mimeType) {
		seconds := scanFrames(data)
		if seconds > 0 {
			return seconds
		}
	}

	return sizeEstimate(len(data))
}

func isMPEG(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "", MIMETypeMPEG, "audio/mp3", "audio/mpeg3":
		return true
	default:
		return false
	}
}

// scanFrames walks data looking for frame sync markers. A recognized frame moves
// the cursor past the frame, anything else moves it by one byte.
func scanFrames(data []byte) float64 {
	var seconds float64

	offset := 0
	for offset+frameHeaderBytes <= len(data) {
		if data[offset] != syncByte || data[offset+1]&syncMask != syncMask {
			offset++

			continue
		}

		header, ok := parseFrameHeader(binary.BigEndian.Uint32(data[offset : offset+frameHeaderBytes]))
		if !ok {
			offset++

			continue
		}

		seconds += float64(samplesPerFrame) / float64(header.sampleRate)
		offset += header.frameSize
	}

	return seconds
}

func parseFrameHeader(header uint32) (frameHeader, bool) {
	version := (header >> 19) & 0x3
	layer := (header >> 17) & 0x3
	bitrateIndex := (header >> 12) & 0xF
	sampleRateIndex := (header >> 10) & 0x3

	if version == versionReserved || layer != layerIII {
		return frameHeader{}, false
	}

	if bitrateIndex == bitrateFree || bitrateIndex == bitrateBad {
		return frameHeader{}, false
	}

	if int(sampleRateIndex) >= len(sampleRates) {
		return frameHeader{}, false
	}

	sampleRate := sampleRates[sampleRateIndex]
	bitrate := bitratesKbps[bitrateIndex-1] * 1000
	frameSize := samplesPerFrame * bitrate / (sampleRate * bitsPerByte)

	if frameSize < frameHeaderBytes {
		return frameHeader{}, false
	}

	return frameHeader{sampleRate: sampleRate, frameSize: frameSize}, true
}

func sizeEstimate(byteLength int) float64 {
	seconds := float64(byteLength) * bitsPerByte / FallbackBitrate
	if seconds < MinDurationSeconds {
		return MinDurationSeconds
	}

	return seconds
}
