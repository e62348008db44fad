// Package system describes the machine the client runs on.
package system

import (
	"fmt"

	"fdss/internal/logger"
)

const clientName = "fdss-client"

type SystemReader struct {
	log logger.Logger
}

func NewReader(log logger.Logger) *SystemReader {
	return &SystemReader{log: log}
}

// UserAgent identifies this client to the identity service, for example
// "fdss-client (linux; amd64; 6.8.0)".
func (r *SystemReader) UserAgent() string {
	if kernel := r.KernelVersion(); kernel != "" {
		return fmt.Sprintf("%s (%s; %s; %s)", clientName, r.OsName(), r.Arch(), kernel)
	}
	return fmt.Sprintf("%s (%s; %s)", clientName, r.OsName(), r.Arch())
}
