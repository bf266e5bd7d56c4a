package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pidFileName = "daemon.pid"

func getPidFilePath(dir string) string {
	return filepath.Join(dir, pidFileName)
}

// WritePidFile records the current process ID in dir.
func WritePidFile(dir string) error {
	return os.WriteFile(getPidFilePath(dir), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPidFile returns the PID recorded in dir.
func ReadPidFile(dir string) (int, error) {
	data, err := os.ReadFile(getPidFilePath(dir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d", pid)
	}
	return pid, nil
}

// RemovePidFile removes the PID file; a missing file is not an error.
func RemovePidFile(dir string) error {
	err := os.Remove(getPidFilePath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
