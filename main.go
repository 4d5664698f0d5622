package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"hotscribe/audio"
	"hotscribe/beep"
	"hotscribe/config"
	"hotscribe/controller"
	"hotscribe/doctor"
	"hotscribe/hotkey"
	"hotscribe/log"
	"hotscribe/shutdown"
	"hotscribe/sink"
	"hotscribe/transcriber"
	"hotscribe/transcript"
)

var version = "dev"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

const usageText = `Usage: hotscribe [flags] [command]

Commands:
  run                 listen for the hotkey and transcribe (default)
  transcribe <file>   transcribe a 16 kHz mono WAV file once
  devices             list audio input devices
  config              print the effective configuration
  doctor              run interactive diagnostics

Flags:
`

func run() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, replays the given WAV file)")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	envFlag := flag.String("env", ".env", "Path to .env file")
	modelFlag := flag.String("model", "", "Model size: tiny, base, small, medium, large (overrides FASTER_WHISPER_MODEL_SIZE)")
	langFlag := flag.String("lang", "", "Language hint, e.g. en, es, fr (overrides TRANSCRIBE_LANGUAGE)")
	engineFlag := flag.String("engine", "", "Transcription engine: exec, http, fake (overrides TRANSCRIBE_ENGINE)")
	deviceFlag := flag.String("device", "", "Use named microphone device (overrides AUDIO_DEVICE)")
	hotkeyFlag := flag.String("hotkey", "", "Hotkey combination, e.g. ctrl+shift+space (overrides HOTKEY)")
	portFlag := flag.Int("port", 0, "Web port (overrides WEB_PORT)")
	injectFlag := flag.String("inject", "", "Text injection: off, type, paste (overrides INJECT_MODE)")
	logLevelFlag := flag.String("loglevel", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	noWebFlag := flag.Bool("no-web", false, "Disable the live web view")
	noBeepFlag := flag.Bool("no-beep", false, "Disable audible feedback")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("hotscribe %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(config.Overrides{
		EnvFile:     *envFlag,
		ModelSize:   *modelFlag,
		Language:    *langFlag,
		Engine:      *engineFlag,
		AudioDevice: *deviceFlag,
		Hotkey:      *hotkeyFlag,
		WebPort:     *portFlag,
		InjectMode:  *injectFlag,
		LogLevel:    *logLevelFlag,
		NoWeb:       *noWebFlag,
		NoBeep:      *noBeepFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if *testFlag {
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: hotscribe -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(cfg, args[0])
		return
	}

	command := "run"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "run":
		if *setupFlag {
			pickDevice(cfg)
		}
		os.Exit(runPipeline(cfg))
	case "transcribe":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: hotscribe transcribe <file.wav>")
			os.Exit(1)
		}
		os.Exit(transcribeFile(cfg, args[0]))
	case "devices":
		os.Exit(listDevices())
	case "config":
		printConfig(cfg)
	case "doctor":
		os.Exit(runDoctor(cfg))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

// runPipeline wires the hotkey to the dispatcher and blocks until a
// termination signal.
func runPipeline(cfg *config.Config) int {
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if !cfg.Beep {
		beep.Disable()
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		return 1
	}
	defer actx.Close()

	p, err := newPipeline(cfg, actx)
	if err != nil {
		log.Errorf("startup: %v", err)
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	hk := hotkey.New(cfg.Combo())
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey %s: %v\n", cfg.Combo(), err)
		p.shutdown()
		return 1
	}
	defer hk.Unregister()

	toggler := hotkey.NewToggler(hk, cfg.Debounce)
	defer toggler.Close()

	printBanner(cfg, p)
	log.SessionStart(p.gateway.Name(), cfg.ModelSize, cfg.Combo().String())

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	p.controller.Run(ctx, toggler.Toggles())
	fmt.Println()
	fmt.Println(labelStyle.Render("shutting down..."))
	p.shutdown()
	return 0
}

func printBanner(cfg *config.Config, p *pipeline) {
	model := cfg.ModelSize
	if cfg.Engine == "http" {
		model = cfg.APIModel
	}
	line := func(label, value string) {
		fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-8s", label)), value)
	}

	fmt.Println(titleStyle.Render("hotscribe " + version))
	line("hotkey", cfg.Combo().String())
	line("engine", fmt.Sprintf("%s (%s, %s)", p.gateway.Name(), model, cfg.Device))
	line("mic", p.recorder.DeviceName())
	if p.server != nil {
		line("web", "http://"+p.listenAddr)
	}
	if mode := cfg.Inject(); mode != sink.InjectOff {
		line("inject", string(mode))
	}
	fmt.Println()
	fmt.Printf("Press %s to start and stop recording. Ctrl+C quits.\n\n", cfg.Combo())
}

func transcribeFile(cfg *config.Config, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	payload, err := audio.ReadWAV(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		return 1
	}

	engine, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	gw := transcriber.NewGateway(engine, cfg.TranscriberOptions(), cfg.TranscribeLimit)

	res, err := gw.Transcribe(context.Background(), payload)
	code := 0
	if err != nil {
		res = transcript.Failed("", controller.Kind(err), err)
		code = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SinkTimeout)
	defer cancel()
	if err := sink.Stdout().Deliver(ctx, res); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

func listDevices() int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	if err := audio.PrintDevices(os.Stdout, actx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printConfig(cfg *config.Config) {
	rows := make([][]string, 0, len(cfg.Entries()))
	for _, e := range cfg.Entries() {
		rows = append(rows, []string{e.Key, e.Value})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("KEY", "VALUE").
		Rows(rows...)
	fmt.Println(t.Render())
}

func runDoctor(cfg *config.Config) int {
	engine, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return doctor.Run(doctor.Options{
		Combo:       cfg.Combo(),
		AudioDevice: cfg.AudioDevice,
		Engine:      engine,
		Gateway:     transcriber.NewGateway(engine, cfg.TranscriberOptions(), cfg.TranscribeLimit),
		Inject:      cfg.Inject(),
	})
}

// pickDevice runs the interactive picker and stores the choice in cfg.
func pickDevice(cfg *config.Config) {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	dev, err := audio.SelectDevice(actx, cfg.AudioDevice)
	if errors.Is(err, audio.ErrSelectionCanceled) {
		os.Exit(0)
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
		return
	}
	cfg.AudioDevice = dev.Name
}
