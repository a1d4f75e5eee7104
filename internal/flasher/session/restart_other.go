//go:build !unix

package session

import (
	"os"

	"github.com/abflash-io/abflash/pkg/log"
)

// Restart exits the process so the supervisor relaunches it. Exec-style
// self-replacement is only available on unix platforms.
func Restart() {
	log.Info("Exiting for restart by supervisor")
	os.Exit(1)
}
