package main

import (
	"context"
	"fmt"
	"time"

	"hotscribe/audio"
	"hotscribe/beep"
	"hotscribe/clipboard"
	"hotscribe/config"
	"hotscribe/controller"
	"hotscribe/dispatch"
	"hotscribe/doctor"
	"hotscribe/log"
	"hotscribe/sink"
	"hotscribe/transcriber"
	"hotscribe/web"
)

const shutdownGrace = 5 * time.Second

// pipeline is the assembled capture -> transcribe -> dispatch chain.
type pipeline struct {
	gateway    *transcriber.Gateway
	recorder   *audio.Recorder
	dispatcher *dispatch.Dispatcher
	controller *controller.Controller
	server     *web.Server
	listenAddr string
	serveErr   chan error
}

func newEngine(cfg *config.Config) (transcriber.Engine, error) {
	switch cfg.Engine {
	case "exec":
		e, err := transcriber.NewExecEngine(cfg.Command)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "http":
		e := transcriber.NewHTTPEngine(cfg.APIURL, cfg.APIKey, cfg.APIModel)
		go e.Warm()
		return e, nil
	case "fake":
		return transcriber.NewFake(cfg.FakeText, nil), nil
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

// newPipeline builds every component over actx. The web server, when
// enabled, is already accepting connections on return.
func newPipeline(cfg *config.Config, actx audio.Context) (*pipeline, error) {
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := engine.(doctor.Checker); ok {
		if err := c.Check(); err != nil {
			log.Warnf("engine check: %v", err)
			fmt.Printf("Warning: %v\n", err)
		}
	}

	p := &pipeline{
		gateway:    transcriber.NewGateway(engine, cfg.TranscriberOptions(), cfg.TranscribeLimit),
		dispatcher: dispatch.New(cfg.SinkTimeout),
	}
	p.dispatcher.Register(sink.Stdout())

	if mode := cfg.Inject(); mode != sink.InjectOff {
		if err := clipboard.Init(); err != nil {
			log.Warnf("inject init failed: %v", err)
			fmt.Printf("Warning: text injection init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
		p.dispatcher.Register(sink.NewInjector(mode))
	}

	device, err := audio.FindDevice(actx, cfg.AudioDevice)
	if err != nil {
		log.Warnf("device lookup: %v", err)
		fmt.Printf("Warning: %v, using system default\n", err)
		device = nil
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		log.Warnf("bluetooth input selected: %s", device.Name)
	}
	p.recorder = audio.NewRecorder(actx, device, audio.CaptureConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}, cfg.MaxDuration)

	var fb controller.Feedback
	if cfg.Beep {
		beep.Init()
		fb = beep.Feedback{}
	}
	p.controller = controller.New(p.recorder, p.gateway, p.dispatcher, controller.Options{
		QueueWhileProcessing: cfg.QueueToggles,
		Feedback:             fb,
	})

	if cfg.WebEnabled {
		state := func() string { return p.controller.State().String() }
		p.server = web.NewServer(cfg.WebAddr(), p.dispatcher, state, version, log.Component("http"))
		ln, err := p.server.Listen()
		if err != nil {
			p.dispatcher.Close(time.Second)
			return nil, fmt.Errorf("web server: %w", err)
		}
		p.listenAddr = ln.Addr().String()
		p.serveErr = make(chan error, 1)
		go func() { p.serveErr <- p.server.Serve(ln) }()
	}
	return p, nil
}

// shutdown lets in-flight sessions reach the sinks, then stops the
// dispatcher and the web server in that order.
func (p *pipeline) shutdown() {
	p.controller.Wait()
	log.SessionEnd(int(p.controller.Sessions()))
	p.dispatcher.Close(shutdownGrace)

	if p.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		log.Warnf("web shutdown: %v", err)
	}
	select {
	case err := <-p.serveErr:
		if err != nil {
			log.Errorf("web server: %v", err)
		}
	case <-ctx.Done():
	}
}
