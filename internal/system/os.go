package system

import (
	"os"
	"runtime"
	"strings"
)

func (r *SystemReader) OsName() string {
	return runtime.GOOS
}

func (r *SystemReader) Arch() string {
	return runtime.GOARCH
}

func (r *SystemReader) KernelVersion() string {
	if runtime.GOOS != "linux" {
		return ""
	}

	value, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		r.log.Debug("failed to read kernel version", "error", err.Error())
		return ""
	}

	return strings.TrimSpace(string(value))
}
