// Package ipc defines the D-Bus wire contract shared by the daemon
// (C5, server) and its clients (the PAM module and the visagectl
// diagnostic tool). It holds no behavior, only names and wire types,
// so the two sides can never drift out of sync on method names or
// argument order.
package ipc

import "time"

// BusName is the well-known D-Bus name the daemon acquires on the
// system bus. Acquisition failure (name already owned) means another
// daemon instance is running and this one must refuse to start.
const BusName = "org.freedesktop.Visage1"

// ObjectPath is the single object the daemon exports.
const ObjectPath = "/org/freedesktop/Visage1"

// InterfaceName is the D-Bus interface carrying all five methods.
const InterfaceName = "org.freedesktop.Visage1"

// Method names, exported so server and client dispatch from the same
// constants rather than string literals that could drift.
const (
	MethodEnroll      = InterfaceName + ".Enroll"
	MethodVerify      = InterfaceName + ".Verify"
	MethodListModels  = InterfaceName + ".ListModels"
	MethodRemoveModel = InterfaceName + ".RemoveModel"
	MethodStatus      = InterfaceName + ".Status"
)

// VerifyTimeout is the client-side bound on a single Verify call, used
// by the PAM module as its D-Bus call deadline. The daemon's worker
// applies its own, independent deadline from VERIFY_TIMEOUT_SECS.
const VerifyTimeout = 3 * time.Second

// ModelInfo is the wire representation of one enrolled model, returned
// by ListModels. It deliberately omits the embedding vector itself —
// the IPC surface never exposes raw biometric data.
type ModelInfo struct {
	ModelID      string
	Label        string
	CreatedAt    int64
	QualityScore float64
}

// StatusReply is the wire representation of the Status diagnostic.
type StatusReply struct {
	CameraDevice   string
	PixelFormat    string
	FrameWidth     int
	FrameHeight    int
	ModelDir       string
	EmitterEnabled bool
	EmitterActive  bool
	EnrolledUsers  int
	EnrolledModels int
	Uptime         int64
}
