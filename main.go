package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/cue"
	"murmur/doctor"
	"murmur/history"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/log"
	"murmur/login"
	"murmur/orchestrator"
	"murmur/shutdown"
	"murmur/transcriber"
	"murmur/update"
)

var version = "dev"

var deviceSelectChan = make(chan struct{}, 1)

var (
	ui        *tuiSink
	orch      *orchestrator.Orchestrator
	worker    *transcriber.Worker
	histStore *history.Store
)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if ui != nil {
			if n := ui.Transcripts(); n > 0 {
				log.SessionEnd(n)
			}
		}
		if orch != nil {
			orch.Close()
		}
		if worker != nil {
			worker.Close()
		}
		if histStore != nil {
			histStore.Close()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

// mic adapts the audio engine to the recorder's capture port and keeps
// the selected device swappable for hotplug.
type mic struct {
	eng *audio.Engine

	mu        sync.Mutex
	device    *audio.DeviceInfo
	preferred string // user's explicit choice, reattached when it returns
	gain      float64
}

func (m *mic) Start() error {
	m.mu.Lock()
	dev, gain := m.device, m.gain
	m.mu.Unlock()
	return m.eng.Start(dev, gain)
}

func (m *mic) Stop() []float32 { return m.eng.Stop() }
func (m *mic) Level() float32  { return m.eng.Level() }

func (m *mic) Tail(cursor int64, out []float32) (int64, int) {
	return m.eng.Tail(cursor, out)
}

func (m *mic) SetDevice(d *audio.DeviceInfo) {
	m.mu.Lock()
	m.device = d
	m.mu.Unlock()
}

func (m *mic) Device() *audio.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

func (m *mic) SetPreferred(name string) {
	m.mu.Lock()
	m.preferred = name
	m.mu.Unlock()
}

func (m *mic) Preferred() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preferred
}

// historySink feeds finished transcripts into the store.
type historySink struct {
	store *history.Store
}

func (h historySink) Save(res orchestrator.Result) error {
	_, err := h.store.Append(history.Entry{
		ID:              res.SessionID,
		Text:            res.Text,
		Language:        res.Language,
		Model:           res.Model,
		Engine:          res.Engine,
		DurationSeconds: res.DurationSeconds,
		Confidence:      res.Confidence,
		CreatedAt:       res.FinishedAt,
	})
	return err
}

type injectSink struct {
	opts inject.Options
}

func (s injectSink) Deliver(text string) error {
	return inject.Deliver(text, s.opts)
}

type cueSink struct{}

func (cueSink) Start() { cue.Play(cue.Start) }
func (cueSink) Stop()  { cue.Play(cue.Stop) }
func (cueSink) Error() { cue.Play(cue.Error) }

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(engine, model, lang string) string {
	if lang == "" {
		lang = "auto"
	}
	return fmt.Sprintf("[%s | %s (%s)]", engine, model, lang)
}

func helpLineText(combo string, toggle bool) string {
	mode := "hold"
	if toggle {
		mode = "toggle"
	}
	return fmt.Sprintf("%s to dictate (%s)", combo, mode)
}

func run() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "update":
			runUpdateCmd()
			return
		case "history":
			runHistoryCmd(os.Args[2:])
			return
		}
	}

	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses the configured or default device)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	comboFlag := flag.String("combo", "", "Hotkey combo (e.g. ctrl+alt+space)")
	toggleFlag := flag.Bool("toggle", false, "Tap to start/stop instead of hold-to-talk")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g. en, es). Empty = config value")
	modelFlag := flag.String("model", "", "Whisper model (tiny, base, small, medium, large-v3, turbo)")
	engineFlag := flag.String("engine", "", "Transcription engine: local or openai")
	injectFlag := flag.String("inject", "paste", "Delivery method: paste, type, or off")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	configFlag := flag.String("config", "", "Config file path (default: OS-specific location)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
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
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	var cfg *config.Config
	if *configFlag != "" {
		cfg, err = config.LoadFrom(*configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v (using defaults)\n", err)
		cfg = config.Default()
	}

	if *deviceFlag != "" {
		cfg.Audio.InputDevice = *deviceFlag
	}
	if *comboFlag != "" {
		cfg.Hotkey.Combo = *comboFlag
	}
	if *toggleFlag {
		cfg.Hotkey.Toggle = true
	}
	if *langFlag != "" {
		cfg.Transcription.Language = *langFlag
	}
	if *modelFlag != "" {
		cfg.Transcription.Model = *modelFlag
	}
	if *engineFlag != "" {
		cfg.Transcription.Engine = *engineFlag
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	// Resolve -setup before daemonization so the picker has a terminal.
	if *setupFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx)
		actx.Close()
		if err != nil {
			fmt.Printf("Error selecting device: %v\n", err)
			os.Exit(1)
		}
		if dev != nil {
			cfg.Audio.InputDevice = dev.Name
			if err := cfg.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
			}
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_MURMUR_BG") == "" {
		exe, _ := os.Executable()
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Env = append(os.Environ(), "_MURMUR_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if cfg.General.FirstRun {
		cfg.General.FirstRun = false
		if err := cfg.Save(); err != nil {
			log.Warnf("could not write config: %v", err)
		} else {
			log.Info("config_created: " + cfg.Path())
		}
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], cfg)
		return
	}

	cue.Configure(cfg.Feedback.SoundEnabled, cfg.Feedback.SoundVolume)

	engine, err := transcriber.New(cfg.Transcription)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	aeng := audio.NewEngine(actx, cfg.Audio.SampleRate, cfg.Audio.MaxSeconds)
	defer aeng.Close()

	device, err := audio.ResolveDevice(actx, cfg.Audio.InputDevice)
	if err != nil {
		log.Warnf("device %q not found: %v (using default)", cfg.Audio.InputDevice, err)
		fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", cfg.Audio.InputDevice)
		device = nil
	}

	capturePort := &mic{eng: aeng, device: device, gain: cfg.Audio.Gain}
	devName := "default"
	if device != nil {
		devName = device.Name
		capturePort.SetPreferred(device.Name)
	}

	log.SessionStart(engine.Name(), cfg.Transcription.Model, devName)

	worker = transcriber.NewWorker(engine)
	worker.Warm()

	var histSink orchestrator.HistorySink
	if cfg.History.Enabled {
		dataDir, err := config.DataDir()
		if err == nil {
			histStore, err = history.Open(dataDir, history.Options{
				RetentionDays: cfg.History.RetentionDays,
				MaxEntries:    cfg.History.MaxEntries,
			})
		}
		if err != nil {
			log.Warnf("history disabled: %v", err)
		} else {
			histSink = historySink{store: histStore}
		}
	}

	var injSink orchestrator.InjectionSink
	switch *injectFlag {
	case "off":
	case "paste", "type", "":
		injSink = injectSink{opts: inject.Options{Method: *injectFlag}}
	default:
		fmt.Printf("Error: unknown inject method %q (use paste, type, or off)\n", *injectFlag)
		os.Exit(1)
	}

	ui = &tuiSink{}
	orch = orchestrator.New(capturePort, worker, orchestrator.Options{
		Language:    cfg.Transcription.Language,
		Model:       cfg.Transcription.Model,
		CaptureRate: cfg.Audio.SampleRate,
		SilenceWarn: time.Duration(cfg.Feedback.SilenceWarnSec) * time.Second,
		SilenceStop: time.Duration(cfg.Feedback.SilenceAutoStopSec) * time.Second,
	})
	orch.SetSinks(ui, histSink, injSink, cueSink{})

	// Start TUI
	if !*tuiFlag {
		tuiReadyOnce.Do(func() { close(tuiReady) })
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	listener, err := startListener(cfg.Hotkey, func(sig hotkey.Signal) {
		switch sig {
		case hotkey.SignalStart:
			orch.StartRecording()
		case hotkey.SignalStop:
			orch.StopRecording()
		case hotkey.SignalToggle:
			orch.Toggle()
		}
	})
	if err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey %q: %v\n", cfg.Hotkey.Combo, err)
		os.Exit(1)
	}
	defer listener.Stop()

	tuiSend(ModeLineMsg{Text: modeLineText(engine.Name(), cfg.Transcription.Model, cfg.Transcription.Language)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(device)})
	tuiSend(HelpLineMsg{Text: helpLineText(listener.Combo().String(), cfg.Hotkey.Toggle)})

	// Poll for device changes (hotplug)
	go func() {
		var last []string
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			devices, err := aeng.Devices()
			if err != nil {
				continue
			}
			names := make([]string, len(devices))
			for i := range devices {
				names[i] = devices[i].Name
			}
			if slices.Equal(last, names) {
				continue
			}
			last = names
			current := capturePort.Device()
			curName := ""
			if current != nil {
				curName = current.Name
			}
			if curName != "" && !slices.Contains(names, curName) {
				// Selected device disappeared, fall back to the default
				log.Info("device_disconnected: " + curName)
				capturePort.SetDevice(nil)
				tuiSend(DeviceLineMsg{Text: deviceLineText(nil)})
			} else if curName == "" && capturePort.Preferred() != "" && slices.Contains(names, capturePort.Preferred()) {
				// Preferred device reappeared, reconnect to it
				for i := range devices {
					if devices[i].Name == capturePort.Preferred() {
						log.Info("device_reconnected: " + devices[i].Name)
						capturePort.SetDevice(&devices[i])
						tuiSend(DeviceLineMsg{Text: deviceLineText(&devices[i])})
						break
					}
				}
			}
		}
	}()

	if cfg.General.CheckUpdates {
		update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
			log.Info("update_available: " + rel.Version)
			tuiSend(UpdateAvailableMsg{Version: rel.Version})
		})
	}

	if err := login.Sync(cfg.General.LaunchAtStartup); err != nil {
		log.Warnf("launch at startup: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	for {
		select {
		case <-sigChan:
			gracefulShutdown()
		case <-deviceSelectChan:
			handleDeviceSwitch(actx, capturePort)
		}
	}
}

// startListener binds the combo to the raw key hook, falling back to an
// OS-registered hotkey where the raw hook needs privileges we lack.
func startListener(hc config.Hotkey, sink func(hotkey.Signal)) (*hotkey.Listener, error) {
	opts := hotkey.Options{
		MinHold:  time.Duration(hc.MinHoldMs) * time.Millisecond,
		Debounce: time.Duration(hc.DebounceMs) * time.Millisecond,
	}
	if hc.Toggle {
		opts.Policy = hotkey.ToggleOnPress
	}

	l, err := hotkey.NewListener(hotkey.NewHook(), hc.Combo, opts)
	if err == nil {
		l.SetSink(sink)
		if err = l.Start(); err == nil {
			return l, nil
		}
	}
	log.Warnf("raw key hook unavailable: %v", err)

	combo, perr := hotkey.ParseCombo(hc.Combo)
	if perr != nil {
		return nil, perr
	}
	sys, serr := hotkey.NewSystemHook(combo)
	if serr != nil {
		return nil, fmt.Errorf("system hotkey: %w", serr)
	}
	l, err = hotkey.NewListener(sys, hc.Combo, opts)
	if err != nil {
		return nil, err
	}
	l.SetSink(sink)
	if err := l.Start(); err != nil {
		return nil, err
	}
	log.Info("hotkey_backend: system")
	return l, nil
}

func handleDeviceSwitch(actx audio.Context, capturePort *mic) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.ReleaseTerminal()
	}
	dev, err := audio.SelectDevice(actx)
	if p != nil {
		p.RestoreTerminal()
	}

	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	name := "system default"
	if dev != nil {
		name = dev.Name
		capturePort.SetPreferred(dev.Name)
	}
	log.Info("device_switch: " + name)
	capturePort.SetDevice(dev)
	tuiSend(DeviceLineMsg{Text: deviceLineText(dev)})
}

func runUpdateCmd() {
	if version == "dev" {
		fmt.Println("Dev build — cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("murmur %s — checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	if rel.Notes != "" {
		fmt.Println()
		for i, line := range strings.Split(strings.TrimSpace(rel.Notes), "\n") {
			if i == 8 {
				fmt.Println("  ...")
				break
			}
			fmt.Printf("  %s\n", strings.TrimRight(line, "\r"))
		}
		fmt.Println()
	}
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}

func runHistoryCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 10, "Number of entries to show")
	search := fs.String("search", "", "Substring to search for")
	clear := fs.Bool("clear", false, "Delete all entries")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	dataDir, err := config.DataDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	store, err := history.Open(dataDir, history.Options{
		RetentionDays: cfg.History.RetentionDays,
		MaxEntries:    cfg.History.MaxEntries,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *clear {
		if err := store.Clear(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("History cleared.")
		return
	}

	var entries []history.Entry
	if *search != "" {
		entries, err = store.Search(*search, *n)
	} else {
		entries, err = store.Recent(*n)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %4.1fs  %3.0f%%  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.DurationSeconds, e.Confidence*100, e.Text)
	}
}
