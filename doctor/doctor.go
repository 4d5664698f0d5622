// Package doctor walks the user through the hotkey, engine, microphone
// and injection path one step at a time.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hotscribe/audio"
	"hotscribe/hotkey"
	"hotscribe/sink"
	"hotscribe/transcriber"
)

// Checker is implemented by engines that can verify their backend before
// the first recording.
type Checker interface {
	Check() error
}

type Options struct {
	Combo       hotkey.Combo
	AudioDevice string
	Engine      transcriber.Engine
	Gateway     *transcriber.Gateway
	Inject      sink.InjectMode
}

type check struct {
	title string
	run   func(Options) bool
}

// checks run in order; the first failure ends the session since later
// steps depend on earlier ones.
var checks = []check{
	{"Hotkey detection", func(o Options) bool { return checkHotkey(o.Combo) }},
	{"Transcription engine", func(o Options) bool { return checkEngine(o.Engine) }},
	{"Microphone and transcription", checkMicAndTranscription},
	{"Text injection", func(o Options) bool { return checkInjection(o.Inject) }},
}

// Run executes the checks and returns the process exit code.
func Run(opts Options) int {
	stdin.save()
	onInterrupt()

	fmt.Println("hotscribe doctor - interactive system diagnostics")
	fmt.Println(strings.Repeat("=", 50))

	for i, c := range checks {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(checks), c.title)
		if !c.run(opts) {
			fmt.Println("\nSome checks failed. See details above.")
			return 1
		}
	}
	fmt.Println("\nAll checks passed!")
	return 0
}

func pass(format string, args ...any) bool {
	fmt.Printf("  PASS: "+format+"\n", args...)
	return true
}

func fail(format string, args ...any) bool {
	fmt.Printf("  FAIL: "+format+"\n", args...)
	return false
}

// confirm asks a yes/no question on a fresh reader so keystrokes typed
// during earlier steps are not taken as the answer.
func confirm(in io.Reader, question string) bool {
	resetTerminal()
	fmt.Printf("%s [y/n]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func checkHotkey(combo hotkey.Combo) bool {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return fail("%v", err)
	}
	fmt.Printf("  %s\n", msg)
	fmt.Printf("Press %s...\n", combo)

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		return fail("could not register hotkey: %v", err)
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
	case <-time.After(10 * time.Second):
		return fail("timeout waiting for hotkey")
	}
	// swallow the release so it does not leak into the next step
	select {
	case <-hk.Keyup():
	case <-time.After(5 * time.Second):
	}
	resetTerminal()
	return pass("hotkey detected")
}

func checkEngine(engine transcriber.Engine) bool {
	c, ok := engine.(Checker)
	if !ok {
		return pass("%s engine needs no setup", engine.Name())
	}
	if err := c.Check(); err != nil {
		return fail("%v", err)
	}
	return pass("%s engine ready", engine.Name())
}

func checkMicAndTranscription(opts Options) bool {
	actx, err := audio.NewContext()
	if err != nil {
		return fail("cannot connect to audio: %v", err)
	}
	defer actx.Close()

	device, err := audio.FindDevice(actx, opts.AudioDevice)
	if err != nil {
		return fail("%v", err)
	}
	rec := audio.NewRecorder(actx, device, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}, time.Minute)
	fmt.Printf("Using device: %s\n", rec.DeviceName())

	fmt.Print("Press Enter and speak for 3 seconds...")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')

	if err := rec.Start(); err != nil {
		return fail("%v", err)
	}
	fmt.Print("  Recording")
	for range 6 {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" done")

	payload, err := rec.Stop()
	if err != nil {
		return fail("recording error: %v", err)
	}
	fmt.Printf("  Recorded %.1fs, transcribing...\n", payload.Duration().Seconds())

	result, err := opts.Gateway.Transcribe(context.Background(), payload)
	if err != nil {
		return fail("transcription error: %v", err)
	}
	text := result.Text
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Transcribed text: %s\n", text)
	fmt.Printf("  Language: %s (%.0f%%), took %v\n\n",
		result.Language, result.LanguageConfidence*100, result.Elapsed.Round(time.Millisecond))

	if !confirm(os.Stdin, "Is this correct?") {
		return fail("transcription not confirmed")
	}
	return pass("transcription verified by user")
}
