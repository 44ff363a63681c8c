// Package doctor runs interactive diagnostics over the real hotkey,
// capture, inference and injection stacks.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/shutdown"
	"murmur/transcriber"
)

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		resetTerminal()
		println("\nInterrupted")
		os.Exit(1)
	}()
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkHotkey(cfg.Hotkey) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(cfg) {
		allPass = false
	}
	if allPass && !checkInjection() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkHotkey(hc config.Hotkey) bool {
	fmt.Println()
	fmt.Println("[1/3] Hotkey detection")
	fmt.Printf("Press %s...\n", hc.Combo)

	// Hold policy with a tiny min-hold so even a quick tap emits both
	// signals regardless of the configured mode.
	listener, err := hotkey.NewListener(hotkey.NewHook(), hc.Combo, hotkey.Options{
		MinHold: time.Millisecond,
	})
	if err != nil {
		fmt.Printf("  FAIL: could not bind combo: %v\n", err)
		return false
	}
	sigCh := make(chan hotkey.Signal, 4)
	listener.SetSink(func(s hotkey.Signal) {
		select {
		case sigCh <- s:
		default:
		}
	})
	if err := listener.Start(); err != nil {
		fmt.Printf("  FAIL: could not start key hook: %v\n", err)
		return false
	}
	defer listener.Stop()

	select {
	case <-sigCh:
		fmt.Println("  PASS: hotkey detected")
		// Wait for the release so it cannot leak into the next step
		select {
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}
		// Reset terminal after hotkey - the hook may leave it in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndTranscription(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[2/3] Microphone and transcription")

	reader := bufio.NewReader(os.Stdin)

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Printf("  FAIL: invalid choice\n")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	engine, err := transcriber.New(cfg.Transcription)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("Loading %s model (%s engine)...\n", cfg.Transcription.Model, engine.Name())
	loadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	err = engine.EnsureLoaded(loadCtx)
	cancel()
	if err != nil {
		fmt.Printf("  FAIL: model load: %v\n", err)
		return false
	}
	defer engine.Unload()

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	aeng := audio.NewEngine(actx, cfg.Audio.SampleRate, cfg.Audio.MaxSeconds)
	defer aeng.Close()
	if err := aeng.Start(device, cfg.Audio.Gain); err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}

	fmt.Print("  Recording")
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	samples := aeng.Stop()
	fmt.Println(" done")

	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	fmt.Printf("  Recorded %.1fs, transcribing...\n", float64(len(samples))/float64(audio.CanonicalRate))

	out, err := engine.Transcribe(context.Background(), samples, cfg.Transcription.Language)
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = "(no speech detected)"
	}

	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	// Ask user to confirm - fresh reader to clear any buffered input
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}

	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkInjection() bool {
	fmt.Println()
	fmt.Println("[3/3] Clipboard and paste")

	if !clipboard.Available() {
		fmt.Println("  FAIL: no clipboard tool found (install xclip, xsel or wl-clipboard)")
		return false
	}

	testStr := fmt.Sprintf("murmur-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}

	msg, err := inject.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)

	fmt.Println("Focus a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(1 * time.Second)
	}

	if err := inject.Deliver("murmur doctor paste test", inject.Options{}); err != nil {
		fmt.Printf("  FAIL: paste failed: %v\n", err)
		return false
	}

	fmt.Println("  PASS: paste dispatched (check the editor window)")
	return true
}
