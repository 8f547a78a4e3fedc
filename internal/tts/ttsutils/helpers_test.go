package ttsutils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/narration-service/internal/tts/ttsutils"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "chapter-1")

	err := ttsutils.EnsureDir(path)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, statErr := os.Stat(path)
	if statErr != nil || !info.IsDir() {
		t.Fatalf("Expected directory at %q, stat error: %v", path, statErr)
	}

	err = ttsutils.EnsureDir(path)
	if err != nil {
		t.Errorf("EnsureDir on existing directory failed: %v", err)
	}
}

// TestFormatDuration verifies duration formatting logic.
func TestFormatDuration(t *testing.T) {
	t.Parallel()

	const (
		halfMinuteInSeconds    = 30.5
		exactMinuteInSeconds   = 60
		minuteAndHalfInSeconds = 90.5
		exactHourInSeconds     = 3600
		hourAndMinuteInSeconds = 3670
	)

	testCases := []struct {
		name     string
		expected string
		seconds  float64
	}{
		{name: "less than a minute", seconds: halfMinuteInSeconds, expected: "30.5s"},
		{name: "exactly a minute", seconds: exactMinuteInSeconds, expected: "1m 0.0s"},
		{name: "less than an hour", seconds: minuteAndHalfInSeconds, expected: "1m 30.5s"},
		{name: "exactly an hour", seconds: exactHourInSeconds, expected: "1h 0m"},
		{name: "more than an hour", seconds: hourAndMinuteInSeconds, expected: "1h 1m"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.FormatDuration(testCase.seconds)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		elapsed  time.Duration
		expected string
	}{
		{elapsed: 250 * time.Millisecond, expected: "250ms"},
		{elapsed: 0, expected: "0ms"},
		{elapsed: 1500 * time.Millisecond, expected: "1.5s"},
		{elapsed: 95 * time.Second, expected: "1m 35.0s"},
	}

	for _, testCase := range testCases {
		result := ttsutils.FormatElapsed(testCase.elapsed)
		if result != testCase.expected {
			t.Errorf("FormatElapsed(%s) = %q; want %q", testCase.elapsed, result, testCase.expected)
		}
	}
}

// TestFormatFileSize verifies file size formatting logic.
func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected string
		bytes    int64
	}{
		{name: "bytes", bytes: 500, expected: "500 B"},
		{name: "kilobytes", bytes: 2048, expected: "2.0 KB"},
		{name: "megabytes", bytes: 1572864, expected: "1.5 MB"},
		{name: "gigabytes", bytes: 2147483648, expected: "2.0 GB"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.FormatFileSize(testCase.bytes)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestIsValidAudioFile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		filename string
		isValid  bool
	}{
		{"chapter.mp3", true},
		{"CHAPTER.MP3", true},
		{"chapter.wav", true},
		{"chapter.ogg", true},
		{"chapter.txt", false},
		{"chapter", false},
	}

	for _, testCase := range testCases {
		if result := ttsutils.IsValidAudioFile(testCase.filename); result != testCase.isValid {
			t.Errorf("IsValidAudioFile(%q) = %v; want %v", testCase.filename, result, testCase.isValid)
		}
	}
}

func TestIsValidTextFile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		filename string
		isValid  bool
	}{
		{"page.txt", true},
		{"page.md", true},
		{"page.TXT", true},
		{"page.json", false},
		{"page.mp3", false},
	}

	for _, testCase := range testCases {
		if result := ttsutils.IsValidTextFile(testCase.filename); result != testCase.isValid {
			t.Errorf("IsValidTextFile(%q) = %v; want %v", testCase.filename, result, testCase.isValid)
		}
	}
}

// TestSanitizeFilename verifies that invalid characters are removed.
func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"no changes", "valid_filename.txt", "valid_filename.txt"},
		{"replaces invalid chars", "in<va>l:id\"/\\|?*name.txt", "in_va_l_id_______name.txt"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.SanitizeFilename(testCase.input)
			if result != testCase.expected {
				t.Errorf("Expected sanitized filename %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestAudioFileName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		source    string
		extension string
		expected  string
	}{
		{"words joined", "Hello  brave world", ".mp3", "Hello_brave_world.mp3"},
		{"extension without dot", "Chapter one", "mp3", "Chapter_one.mp3"},
		{"invalid characters", "What? A/B: test", ".mp3", "What__A_B__test.mp3"},
		{"empty source", "   ", ".mp3", "narration.mp3"},
		{"only punctuation", "...", ".wav", "narration.wav"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.AudioFileName(testCase.source, testCase.extension)
			if result != testCase.expected {
				t.Errorf("AudioFileName(%q) = %q; want %q", testCase.source, result, testCase.expected)
			}
		})
	}

	long := ttsutils.AudioFileName(strings.Repeat("a", 200), ".mp3")
	if len(long) != 64+len(".mp3") {
		t.Errorf("Expected long names to be capped, got %d chars", len(long))
	}
}
