package tsdb

import "errors"

// Sentinel errors for telemetry operations. Check with errors.Is.
var (
	ErrNotConnected     = errors.New("tsdb: not connected")
	ErrConnectionFailed = errors.New("tsdb: connection failed")
	ErrDisabled         = errors.New("tsdb: disabled in configuration")
)
