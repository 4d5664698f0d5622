//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The hotkey backend on darwin needs the main thread's event loop.
func main() {
	mainthread.Init(run)
}
