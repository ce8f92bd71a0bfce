package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ekaya/facegate/pkg/camera"
	"github.com/ekaya/facegate/pkg/config"
	"github.com/ekaya/facegate/pkg/detect"
	"github.com/ekaya/facegate/pkg/logging"
	"github.com/ekaya/facegate/pkg/recognize"
	"github.com/ekaya/facegate/pkg/session"
	"github.com/ekaya/facegate/pkg/store"
)

const version = "0.1.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

var (
	cfg      *config.Config
	commands map[string]*Command
)

func init() {
	commands = map[string]*Command{
		"enroll": {
			Name:        "enroll",
			Description: "Enroll a new identity (captures face samples, then retrains)",
			Usage:       "facegate enroll <first> <last>",
			Run:         cmdEnroll,
		},
		"verify": {
			Name:        "verify",
			Description: "Verify the face in front of the camera against enrolled identities",
			Usage:       "facegate verify",
			Run:         cmdVerify,
		},
		"admin": {
			Name:        "admin",
			Description: "Enroll the admin identity on first use, verify it afterwards",
			Usage:       "facegate admin",
			Run:         cmdAdmin,
		},
		"train": {
			Name:        "train",
			Description: "Retrain the recognition model from stored samples",
			Usage:       "facegate train",
			Run:         cmdTrain,
		},
		"remove": {
			Name:        "remove",
			Description: "Remove an identity's face samples and retrain",
			Usage:       "facegate remove <first> <last>",
			Run:         cmdRemove,
		},
		"list": {
			Name:        "list",
			Description: "List enrolled identities",
			Usage:       "facegate list",
			Run:         cmdList,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "facegate config",
			Run:         cmdConfig,
		},
		"download-cascade": {
			Name:        "download-cascade",
			Description: "Download the face detection cascade",
			Usage:       "facegate download-cascade [directory]",
			Run:         cmdDownloadCascade,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "facegate version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "facegate help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	// Parse global flags
	configFile := flag.String("config", "", "Path to configuration file")
	frames := flag.String("frames", "", "Directory of frame images to use as the camera")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	// Load configuration
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	cfg.ExpandPaths()
	if *frames != "" {
		cfg.Camera.Device = config.ExpandPath(*frames)
	}

	// Initialize logging
	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("facegate v%s starting", version)
	logging.Debugf("Config loaded, data dir: %s", cfg.Storage.DataDir)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("facegate - Face Enrollment and Recognition Sessions")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Usage: facegate [options] <command> [arguments]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <file>   Path to configuration file")
	fmt.Println("  -frames <dir>    Directory of frame images used as the camera source")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println("\nCommands:")
	for _, name := range []string{"enroll", "verify", "admin", "train", "remove", "list", "config", "download-cascade", "version", "help"} {
		cmd := commands[name]
		fmt.Printf("  %-18s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  facegate enroll Ada Lovelace   # Enroll 'Ada_Lovelace'")
	fmt.Println("  facegate verify                # Recognize whoever faces the camera")
	fmt.Println("  facegate -debug train          # Retrain with debug output")
	fmt.Println("\nRun 'facegate help <command>' for more information on a command.")
}

// identityName builds the stored identity name from first and last
// name arguments.
func identityName(first, last string) string {
	return first + "_" + last
}

// displayName turns a stored identity back into a readable name.
func displayName(identity string) string {
	return strings.ReplaceAll(identity, "_", " ")
}

// sessionOptions maps the loaded configuration onto session tunables.
func sessionOptions() session.Options {
	return session.Options{
		Device:              cfg.Camera.Device,
		PollInterval:        cfg.Session.PollInterval(),
		WarmupDelay:         cfg.Session.WarmupDelay(),
		SettleDelay:         cfg.Session.SettleDelay(),
		RequiredSamples:     cfg.Session.RequiredEnrollSamples,
		ConfidenceThreshold: cfg.Recognition.ConfidenceThreshold,
	}
}

func detectorParams() detect.Params {
	return detect.Params{
		MinSize:          cfg.Detector.MinSize,
		MaxSize:          cfg.Detector.MaxSize,
		ShiftFactor:      cfg.Detector.ShiftFactor,
		ScaleFactor:      cfg.Detector.ScaleFactor,
		IoUThreshold:     cfg.Detector.IoUThreshold,
		QualityThreshold: cfg.Detector.QualityThreshold,
	}
}

func trainerParams() recognize.Params {
	return recognize.Params{
		GridX:      cfg.Recognition.GridX,
		GridY:      cfg.Recognition.GridY,
		SampleSize: cfg.Recognition.SampleSize,
	}
}

// sessionContext returns a context cancelled by Ctrl-C so a capture
// session in progress winds down as a cancellation, not a kill.
func sessionContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// retrain rebuilds the model and identity table from the sample store.
func retrain(samples *store.Dir) error {
	trainer := recognize.NewTrainer(trainerParams(), cfg.ModelFile(), cfg.LabelsFile())
	model, table, err := trainer.Retrain(samples)
	if err != nil {
		return err
	}
	fmt.Printf("Model trained: %d identities, %d samples.\n", table.Len(), len(model.Gallery))
	return nil
}

// runEnrollment drives one enrollment session to its end and retrains
// on success.
func runEnrollment(identity string) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	detector, err := detect.NewDetector(cfg.Detector.CascadeFile, detectorParams())
	if err != nil {
		return fmt.Errorf("detector unavailable (run 'facegate download-cascade'?): %w", err)
	}

	samples := store.NewDir(cfg.Storage.DataDir)
	engine := session.NewEngine(camera.NewDirCamera(), detector, nil, samples, sessionOptions())

	fmt.Printf("Enrolling '%s'. Face the camera; %d samples will be captured.\n",
		displayName(identity), cfg.Session.RequiredEnrollSamples)

	ctx, stop := sessionContext()
	defer stop()

	sink := newCLISink()
	s, err := engine.StartEnrollment(ctx, identity, sink)
	if err != nil {
		return err
	}
	<-s.Done()

	if s.State() != session.StateSucceeded {
		return fmt.Errorf("enrollment ended: %s", s.State())
	}

	return retrain(samples)
}

// runVerification drives one verification session to its end.
func runVerification() error {
	detector, err := detect.NewDetector(cfg.Detector.CascadeFile, detectorParams())
	if err != nil {
		return fmt.Errorf("detector unavailable (run 'facegate download-cascade'?): %w", err)
	}

	recognizer := recognize.NewRecognizer(cfg.ModelFile(), cfg.LabelsFile())
	if err := recognizer.Load(); err != nil {
		return fmt.Errorf("no trained model, enroll someone first: %w", err)
	}

	engine := session.NewEngine(camera.NewDirCamera(), detector, recognizer, nil, sessionOptions())

	fmt.Println("Look at the camera...")

	ctx, stop := sessionContext()
	defer stop()

	s, err := engine.StartVerification(ctx, newCLISink())
	if err != nil {
		return err
	}
	<-s.Done()

	switch s.State() {
	case session.StateSucceeded, session.StateFailed:
		return nil
	default:
		return fmt.Errorf("verification ended: %s", s.State())
	}
}

// Command implementations

func cmdEnroll(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("first and last name required\nUsage: facegate enroll <first> <last>")
	}
	identity := identityName(args[0], args[1])

	samples := store.NewDir(cfg.Storage.DataDir)
	if samples.IdentityExists(identity) {
		return fmt.Errorf("'%s' is already enrolled. Use 'facegate remove %s %s' first",
			displayName(identity), args[0], args[1])
	}

	logging.Infof("Starting enrollment for: %s", identity)
	return runEnrollment(identity)
}

func cmdVerify(args []string) error {
	logging.Info("Starting verification")
	return runVerification()
}

// cmdAdmin enrolls the admin identity the first time and verifies it
// on every later run.
func cmdAdmin(args []string) error {
	admin := cfg.Session.AdminIdentity

	samples := store.NewDir(cfg.Storage.DataDir)
	if !samples.IdentityExists(admin) {
		fmt.Printf("No '%s' identity yet, starting enrollment.\n", admin)
		logging.Infof("First admin run, enrolling: %s", admin)
		return runEnrollment(admin)
	}

	logging.Infof("Verifying admin identity: %s", admin)
	return runVerification()
}

func cmdTrain(args []string) error {
	logging.Info("Retraining recognition model")

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return retrain(store.NewDir(cfg.Storage.DataDir))
}

func cmdRemove(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("first and last name required\nUsage: facegate remove <first> <last>")
	}
	identity := identityName(args[0], args[1])

	samples := store.NewDir(cfg.Storage.DataDir)
	if !samples.IdentityExists(identity) {
		return fmt.Errorf("'%s' is not enrolled", displayName(identity))
	}

	logging.Infof("Removing face data for: %s", identity)
	if err := samples.RemoveIdentity(identity); err != nil {
		return fmt.Errorf("failed to remove face data: %w", err)
	}
	fmt.Printf("Face data for '%s' has been removed.\n", displayName(identity))

	err := retrain(samples)
	if errors.Is(err, recognize.ErrNoTrainingData) {
		fmt.Println("No identities left; the model was not rebuilt.")
		return nil
	}
	return err
}

func cmdList(args []string) error {
	logging.Debug("Listing enrolled identities")

	samples := store.NewDir(cfg.Storage.DataDir)
	identities := samples.ListIdentities()
	if len(identities) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	fmt.Println("Enrolled identities:")
	for _, id := range identities {
		line := fmt.Sprintf("  - %-24s %d sample(s)", displayName(id), samples.SampleCount(id))
		if first, ok := samples.FirstSampleFor(id); ok {
			line += fmt.Sprintf("  [%s]", first)
		}
		fmt.Println(line)
	}
	fmt.Printf("\nTotal: %d identit(y/ies)\n", len(identities))

	return nil
}

func cmdConfig(args []string) error {
	logging.Debug("Showing configuration")

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Camera]")
	fmt.Printf("  Device:          %s\n", cfg.Camera.Device)
	fmt.Printf("  Resolution:      %dx%d\n", cfg.Camera.Width, cfg.Camera.Height)
	fmt.Println()
	fmt.Println("[Detector]")
	fmt.Printf("  Cascade:         %s\n", cfg.Detector.CascadeFile)
	fmt.Printf("  Face Size:       %d-%d px\n", cfg.Detector.MinSize, cfg.Detector.MaxSize)
	fmt.Printf("  Quality:         %.2f\n", cfg.Detector.QualityThreshold)
	fmt.Println()
	fmt.Println("[Recognition]")
	fmt.Printf("  Confidence:      %.2f\n", cfg.Recognition.ConfidenceThreshold)
	fmt.Printf("  Trainer Dir:     %s\n", cfg.Recognition.TrainerDir)
	fmt.Printf("  Histogram Grid:  %dx%d\n", cfg.Recognition.GridX, cfg.Recognition.GridY)
	fmt.Printf("  Sample Size:     %d px\n", cfg.Recognition.SampleSize)
	fmt.Println()
	fmt.Println("[Session]")
	fmt.Printf("  Enroll Samples:  %d\n", cfg.Session.RequiredEnrollSamples)
	fmt.Printf("  Poll Interval:   %s\n", cfg.Session.PollInterval())
	fmt.Printf("  Warmup Delay:    %s\n", cfg.Session.WarmupDelay())
	fmt.Printf("  Settle Delay:    %s\n", cfg.Session.SettleDelay())
	fmt.Printf("  Admin Identity:  %s\n", cfg.Session.AdminIdentity)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:           %s\n", cfg.Logging.Level)
	fmt.Printf("  File:            %s\n", cfg.Logging.File)

	return nil
}

func cmdVersion(args []string) error {
	fmt.Printf("facegate v%s\n", version)
	fmt.Println("Face Enrollment and Recognition Sessions")
	fmt.Println()
	fmt.Println("Build Information:")
	fmt.Printf("  Go version: %s\n", "1.21+")
	fmt.Printf("  Platform:   linux/amd64\n")
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf("Command: %s\n", cmd.Name)
	fmt.Printf("Description: %s\n", cmd.Description)
	fmt.Printf("Usage: %s\n", cmd.Usage)

	switch cmdName {
	case "enroll":
		fmt.Println("\nEnrollment Process:")
		fmt.Println("  1. Position yourself in front of the camera")
		fmt.Println("  2. Ensure good lighting")
		fmt.Println("  3. Samples are captured while exactly one face is in frame")
		fmt.Println("  4. The recognition model is retrained when capture finishes")
	case "verify":
		fmt.Println("\nVerification Process:")
		fmt.Println("  1. Look at the camera")
		fmt.Println("  2. The first clear face is scored against all enrolled identities")
		fmt.Println("  3. A match within the confidence threshold is accepted")
	case "admin":
		fmt.Println("\nAdmin Flow:")
		fmt.Println("  The admin identity is enrolled on the first run.")
		fmt.Println("  Every later run verifies the face against it.")
	case "config":
		fmt.Println("\nConfiguration Locations:")
		fmt.Println("  System: /etc/facegate/facegate.yaml")
		fmt.Println("  User:   ~/.config/facegate/facegate.yaml")
		fmt.Println("\nUse -config flag to specify a custom config file.")
	}

	return nil
}
