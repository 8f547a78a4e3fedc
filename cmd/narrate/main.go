package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/analytics"
	"github.com/book-expert/narration-service/internal/config"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/book-expert/narration-service/internal/tts/audio"
	"github.com/book-expert/narration-service/internal/tts/ttsutils"
)

// Flag descriptions and messages.
const (
	flagTextDesc    = "Text to convert to speech"
	flagFileDesc    = "Text file (.txt or .md) to convert to speech"
	flagOutputDesc  = "Output file path (.mp3), derived from the text when empty"
	flagVoiceDesc   = "Voice ID, defaults to provider.default_voice_id"
	flagModelDesc   = "Model ID, defaults to provider.default_model_id"
	flagConfigDesc  = "Path to a TOML config file, otherwise defaults plus " + config.EnvAPIKey
	flagVoicesDesc  = "List the available voices and exit"
	flagVerboseDesc = "Enable verbose logging"
	flagDataURLDesc = "Print the audio as a data URL instead of writing a file"
)

// Flag names.
const (
	flagText    = "text"
	flagFile    = "file"
	flagOutput  = "output"
	flagVoice   = "voice"
	flagModel   = "model"
	flagConfig  = "config"
	flagVoices  = "voices"
	flagVerbose = "verbose"
	flagDataURL = "data-url"
)

// Error messages.
const (
	errFailedToLoadConfig  = "failed to load configuration: %w"
	errFailedToInitLogger  = "failed to initialize logger: %w"
	errFailedToReadFile    = "failed to read %s: %w"
	errFailedToWriteAudio  = "failed to write %s: %w"
	errFailedToSynthesize  = "failed to synthesize speech (%s, HTTP %d): %w"
	errFailedToListVoices  = "failed to list voices: %w"
	errFailedToBuildClient = "failed to create synthesizer: %w"
	errFailedToCheckVoice  = "failed to check voice %q: %w"
	errFailedToPrintURL    = "failed to print data URL: %w"
)

// Log messages.
const (
	logSynthesizing = "Synthesizing %d chars to: %s"
	logVoiceChecked = "Using voice %s (%s)"
	logGenerated    = "Generated: %s (%s, %s)\n"
	logVoiceLine    = "%-24s %-28s %s\n"
)

// File names and paths.
const (
	logFileNameDefault = "narrate.log"
	logFileNameVerbose = "narrate-verbose.log"
	outputFileMode     = 0o644
	voiceListLimit     = 100
)

var (
	// ErrEitherTextOrFile is returned when no input was given.
	ErrEitherTextOrFile = errors.New("either --text or --file must be provided")
	// ErrCannotSpecifyBoth is returned when both inputs were given.
	ErrCannotSpecifyBoth = errors.New("cannot specify both --text and --file")
	// ErrUnsupportedFile is returned for input files that are not text.
	ErrUnsupportedFile = errors.New("input file must be .txt or .md")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text    string
	file    string
	output  string
	voice   string
	model   string
	config  string
	voices  bool
	verbose bool
	dataURL bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	if !flags.voices {
		err = validateArguments(flags)
		if err != nil {
			return err
		}
	}

	cfg, appLog, err := setup(flags.config, flags.verbose)
	if err != nil {
		return err
	}

	defer func() {
		_ = appLog.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpclient.New(httpclient.WithLogger(appLog))

	if flags.voices {
		return listVoices(ctx, cfg, client, stdout)
	}

	return narrate(ctx, cfg, client, appLog, flags, stdout)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("narrate", flag.ContinueOnError)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.model, flagModel, "", flagModelDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flagSet.BoolVar(&flags.dataURL, flagDataURL, false, flagDataURLDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("invalid arguments: %w", err)
	}

	return flags, nil
}

// validateArguments checks for required and conflicting inputs.
func validateArguments(flags appFlags) error {
	switch {
	case flags.text == "" && flags.file == "":
		return ErrEitherTextOrFile
	case flags.text != "" && flags.file != "":
		return ErrCannotSpecifyBoth
	case flags.file != "" && !ttsutils.IsValidTextFile(flags.file):
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, flags.file)
	}

	return nil
}

// setup loads config and initializes the logger.
func setup(configPath string, verbose bool) (*config.Config, *logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)

	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.FromEnvironment()
	}

	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	logDir := cfg.Paths.BaseLogsDir
	if logDir == "" {
		logDir = os.TempDir()
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	appLog, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return cfg, appLog, nil
}

// readInput returns the text to narrate from --text or --file.
func readInput(flags appFlags) (string, error) {
	if flags.text != "" {
		return flags.text, nil
	}

	data, err := os.ReadFile(flags.file)
	if err != nil {
		return "", fmt.Errorf(errFailedToReadFile, flags.file, err)
	}

	return string(data), nil
}

// resolveOutputPath uses --output, or names the file after the input: the input
// file's base name, or the first words of the text. An --output without an audio
// extension gets ".mp3" appended.
func resolveOutputPath(flags appFlags, text string) string {
	extension := audio.FormatMP3.Extension()

	if flags.output != "" {
		if !ttsutils.IsValidAudioFile(flags.output) {
			return flags.output + extension
		}

		return flags.output
	}

	if flags.file != "" {
		base := filepath.Base(flags.file)

		return ttsutils.AudioFileName(base[:len(base)-len(filepath.Ext(base))], extension)
	}

	return ttsutils.AudioFileName(text, extension)
}

// narrate synthesizes the input and writes the audio file.
func narrate(
	ctx context.Context,
	cfg *config.Config,
	client *httpclient.Client,
	appLog *logger.Logger,
	flags appFlags,
	stdout io.Writer,
) error {
	text, err := readInput(flags)
	if err != nil {
		return err
	}

	sink, err := analytics.NewLogSink(appLog)
	if err != nil {
		return fmt.Errorf(errFailedToBuildClient, err)
	}

	synthesizer, err := tts.NewSynthesizer(cfg.SynthesizerSettings(), client, sink, appLog)
	if err != nil {
		return fmt.Errorf(errFailedToBuildClient, err)
	}

	if flags.voice != "" {
		err = checkVoice(ctx, cfg, client, appLog, flags.voice)
		if err != nil {
			return err
		}
	}

	outputPath := resolveOutputPath(flags, text)
	appLog.Info(logSynthesizing, len([]rune(text)), outputPath)

	clip, err := synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:    text,
		VoiceID: flags.voice,
		ModelID: flags.model,
		UserID:  "",
	})
	if err != nil {
		return fmt.Errorf(errFailedToSynthesize, tts.KindOf(err), tts.HTTPStatus(err), err)
	}

	if flags.dataURL {
		_, err = fmt.Fprintln(stdout, clip.DataURL())
		if err != nil {
			return fmt.Errorf(errFailedToPrintURL, err)
		}

		return nil
	}

	return writeAudio(clip, outputPath, stdout)
}

// checkVoice fails before any characters are billed when the account cannot
// use voiceID.
func checkVoice(
	ctx context.Context,
	cfg *config.Config,
	client *httpclient.Client,
	appLog *logger.Logger,
	voiceID string,
) error {
	catalog, err := tts.NewVoiceCatalog(cfg.SynthesizerSettings(), client)
	if err != nil {
		return fmt.Errorf(errFailedToCheckVoice, voiceID, err)
	}

	voice, err := catalog.Find(ctx, voiceID)
	if err != nil {
		return fmt.Errorf(errFailedToCheckVoice, voiceID, err)
	}

	appLog.Info(logVoiceChecked, voice.ID, voice.Name)

	return nil
}

func writeAudio(clip *audio.Audio, outputPath string, stdout io.Writer) error {
	dir := filepath.Dir(outputPath)
	if dir != "." {
		err := ttsutils.EnsureDir(dir)
		if err != nil {
			return fmt.Errorf(errFailedToWriteAudio, outputPath, err)
		}
	}

	err := os.WriteFile(outputPath, clip.Data, outputFileMode)
	if err != nil {
		return fmt.Errorf(errFailedToWriteAudio, outputPath, err)
	}

	_, _ = fmt.Fprintf(
		stdout,
		logGenerated,
		outputPath,
		ttsutils.FormatDuration(clip.DurationSeconds),
		ttsutils.FormatFileSize(int64(len(clip.Data))),
	)

	return nil
}

// listVoices prints the voices the account can use.
func listVoices(ctx context.Context, cfg *config.Config, client *httpclient.Client, stdout io.Writer) error {
	catalog, err := tts.NewVoiceCatalog(cfg.SynthesizerSettings(), client)
	if err != nil {
		return fmt.Errorf(errFailedToListVoices, err)
	}

	voices, err := catalog.List(ctx, voiceListLimit)
	if err != nil {
		return fmt.Errorf(errFailedToListVoices, err)
	}

	for _, voice := range voices {
		_, _ = fmt.Fprintf(stdout, logVoiceLine, voice.ID, voice.Name, voice.Category)
	}

	return nil
}
