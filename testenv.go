package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hotscribe/audio"
	"hotscribe/beep"
	"hotscribe/config"
	"hotscribe/hotkey"
	"hotscribe/log"
	"hotscribe/transcript"
)

// resultSignal lets the stdin driver wait for dispatched results.
type resultSignal chan transcript.Result

func (resultSignal) Name() string { return "test" }

func (s resultSignal) Deliver(ctx context.Context, r transcript.Result) error {
	select {
	case s <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runTestMode drives the real pipeline headlessly. The microphone is
// replaced by wavPath and the hotkey by stdin commands:
//
//	TOGGLE      press and release the hotkey
//	KEYDOWN     press only
//	KEYUP       release only
//	WAIT        block until the next result is dispatched
//	SLEEP n     pause n milliseconds
//	QUIT        shut down gracefully
func runTestMode(cfg *config.Config, wavPath string) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	p, err := newPipeline(cfg, fakeCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	results := make(resultSignal, 16)
	p.dispatcher.Register(results)

	hk := hotkey.NewFake()
	if err := hk.Register(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()
	toggler := hotkey.NewToggler(hk, cfg.Debounce)
	defer toggler.Close()

	log.SessionStart(p.gateway.Name(), cfg.ModelSize, "test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stdin driver in background; EOF behaves like QUIT.
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "TOGGLE":
				hk.SimPress()
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "WAIT":
				select {
				case r := <-results:
					log.Debugf("test: result dispatched (%d chars, error=%v)", len(r.Text), r.IsError())
				case <-time.After(2 * time.Minute):
					fmt.Fprintln(os.Stderr, "WAIT timed out")
					return
				}
			case "QUIT":
				return
			default:
				if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
					if n, err := strconv.Atoi(ms); err == nil {
						time.Sleep(time.Duration(n) * time.Millisecond)
					}
				}
			}
		}
	}()

	p.controller.Run(ctx, toggler.Toggles())
	p.shutdown()
}
