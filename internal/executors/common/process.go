// internal/executors/common/process.go
package common

import (
	"os"
	"syscall"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

// Terminate pide al proceso que salga con SIGTERM y escala a SIGKILL si no
// lo hace dentro del plazo. done debe entregar el resultado de Wait; la
// llamada retorna cuando el proceso ha salido de verdad.
func Terminate(proc *os.Process, done <-chan error, grace time.Duration, logger logx.Logger) {
	if proc == nil {
		return
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if err == os.ErrProcessDone {
			<-done
			return
		}
		logger.Warn("SIGTERM failed, forcing kill", "pid", proc.Pid, "error", err.Error())
		kill(proc, logger)
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("process ignored SIGTERM, killing", "pid", proc.Pid)
		kill(proc, logger)
		<-done
	}
}

func kill(proc *os.Process, logger logx.Logger) {
	if err := proc.Kill(); err != nil && err != os.ErrProcessDone {
		logger.Warn("failed to kill process", "pid", proc.Pid, "error", err.Error())
	}
}

// NiceArgs antepone nice -n 15 al comando para correrlo con prioridad baja.
func NiceArgs(args []string) []string {
	return append([]string{"nice", "-n", "15"}, args...)
}
