// Package ttsutils holds display and path helpers shared by the narration
// service's log output and its command line client.
package ttsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultDirPermissions  = 0o750
	dot                    = "."
	invalidCharReplacement = "_"
	maxBaseNameRunes       = 64
	fallbackBaseName       = "narration"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
	formatMillis    = "%dms"
)

// File extension constants.
const (
	extAAC  = ".aac"
	extFLAC = ".flac"
	extM4A  = ".m4a"
	extMD   = ".md"
	extMP3  = ".mp3"
	extOGG  = ".ogg"
	extTXT  = ".txt"
	extWAV  = ".wav"
)

const errFmtFailedToCreateDir = "failed to create directory %s: %w"

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatElapsed formats processing time. Sub-second values are shown in
// milliseconds, longer ones like FormatDuration.
func FormatElapsed(elapsed time.Duration) string {
	if elapsed < time.Second {
		return fmt.Sprintf(formatMillis, elapsed.Milliseconds())
	}

	return FormatDuration(elapsed.Seconds())
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// IsValidAudioFile checks if a filename has a common audio file extension.
func IsValidAudioFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case extWAV, extMP3, extFLAC, extOGG, extM4A, extAAC:
		return true
	default:
		return false
	}
}

// IsValidTextFile checks if a filename is plain text that can be narrated as is.
func IsValidTextFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case extTXT, extMD:
		return true
	default:
		return false
	}
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}

// AudioFileName derives an output file name from free text, e.g. the first words
// of the narrated passage. The extension includes its leading dot.
func AudioFileName(source, extension string) string {
	words := strings.Fields(SanitizeFilename(source))
	base := strings.Join(words, invalidCharReplacement)

	runes := []rune(base)
	if len(runes) > maxBaseNameRunes {
		base = string(runes[:maxBaseNameRunes])
	}

	base = strings.Trim(base, dot+invalidCharReplacement)
	if base == "" {
		base = fallbackBaseName
	}

	if !strings.HasPrefix(extension, dot) {
		extension = dot + extension
	}

	return base + extension
}
