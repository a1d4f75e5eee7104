//go:build unix

package session

import (
	"os"
	"syscall"

	"github.com/abflash-io/abflash/pkg/log"
)

// Restart replaces the running process with a fresh copy of itself. A
// failed session holds no resumable state, so retry means starting over
// from Initializing with the same argv and environment.
func Restart() {
	exe, err := os.Executable()
	if err != nil {
		log.Error(err, "Cannot resolve own executable, exiting instead")
		os.Exit(1)
	}
	log.Info("Restarting process", "exe", exe)
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		log.Error(err, "Exec failed, exiting instead")
		os.Exit(1)
	}
}
