package main

import (
	"context"
	"testing"
	"time"

	"hotscribe/audio"
	"hotscribe/config"
	"hotscribe/transcript"
)

func TestNewEngine(t *testing.T) {
	for _, name := range []string{"exec", "http", "fake"} {
		cfg := &config.Config{Engine: name, Command: "whisper-json", APIURL: "http://127.0.0.1:1/v1"}
		e, err := newEngine(cfg)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if e.Name() != name {
			t.Errorf("engine name = %q, want %q", e.Name(), name)
		}
	}
	if _, err := newEngine(&config.Config{Engine: "nope"}); err == nil {
		t.Error("unknown engine accepted")
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Setenv("TRANSCRIBE_ENGINE", "fake")
	t.Setenv("TRANSCRIBE_FAKE_TEXT", "end to end")
	cfg, err := config.Load(config.Overrides{EnvFile: "nonexistent.env", NoWeb: true, NoBeep: true})
	if err != nil {
		t.Fatal(err)
	}

	actx := audio.NewFakeContextPCM(make([]byte, audio.SampleRate*audio.BytesPerSample), false)
	p, err := newPipeline(cfg, actx)
	if err != nil {
		t.Fatal(err)
	}
	results := make(resultSignal, 4)
	p.dispatcher.Register(results)

	toggles := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.controller.Run(ctx, toggles)
		close(done)
	}()

	toggles <- struct{}{}
	toggles <- struct{}{}

	var r transcript.Result
	select {
	case r = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("no result dispatched")
	}
	if r.Text != "end to end" || r.IsError() {
		t.Errorf("result = %+v", r)
	}

	cancel()
	<-done
	p.shutdown()
	if p.dispatcher.Len() != 0 {
		t.Errorf("sinks left after shutdown: %d", p.dispatcher.Len())
	}
}
