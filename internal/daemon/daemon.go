// Package daemon implements the visage daemon (C5): it owns the camera,
// IR emitter, inference engine, and model store, and exposes them to
// PAM clients and the visagectl tool over D-Bus.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/visage-project/visage/internal/config"
	"github.com/visage-project/visage/internal/ipc"
)

// Daemon is the top-level process object: it owns the bus connection
// and the single worker goroutine that actually touches the camera,
// engine, and store.
type Daemon struct {
	conn   *dbus.Conn
	worker *worker
	logger *logrus.Logger
}

// Run loads configuration, verifies model integrity, opens every
// resource, registers on the bus, and blocks until SIGINT/SIGTERM.
func Run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Infof("verifying model manifest in %s", cfg.ModelDir)
	if err := verifyManifest(cfg.ModelDir); err != nil {
		return fmt.Errorf("model integrity check failed: %w", err)
	}

	w, err := newWorker(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize worker: %w", err)
	}

	logger.Infof("discarding %d warmup frames", cfg.WarmupFrames)
	warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	w.warmup(warmupCtx)
	warmupCancel()
	go w.run()

	conn, err := connectBus(cfg.SessionBus)
	if err != nil {
		w.close()
		return fmt.Errorf("connect to bus: %w", err)
	}

	d := &Daemon{conn: conn, worker: w, logger: logger}
	if err := d.register(); err != nil {
		w.close()
		_ = conn.Close()
		return fmt.Errorf("register on bus: %w", err)
	}

	logger.Infof("registered as %s, serving requests", ipc.BusName)
	d.waitForShutdown()

	logger.Info("shutting down")
	_ = conn.Close()
	w.close()
	return nil
}

func connectBus(useSessionBus bool) (*dbus.Conn, error) {
	if useSessionBus {
		return dbus.ConnectSessionBus()
	}
	return dbus.ConnectSystemBus()
}

// register acquires the well-known name and exports the method table.
// Acquisition failure (name already owned) means another daemon
// instance is running, and this one must refuse to start.
func (d *Daemon) register() error {
	reply, err := d.conn.RequestName(ipc.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", ipc.BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already owned by another daemon instance", ipc.BusName)
	}

	svc := &service{d: d}
	if err := d.conn.Export(svc, ipc.ObjectPath, ipc.InterfaceName); err != nil {
		return fmt.Errorf("export method table: %w", err)
	}

	node := &introspect.Node{
		Name: ipc.ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: ipc.InterfaceName,
				Methods: []introspect.Method{
					{Name: "Enroll"},
					{Name: "Verify"},
					{Name: "ListModels"},
					{Name: "RemoveModel"},
					{Name: "Status"},
				},
			},
		},
	}
	if err := d.conn.Export(introspect.NewIntrospectable(node), ipc.ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}
	return nil
}

func (d *Daemon) waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// callerUID resolves the Unix UID of a D-Bus caller via the bus
// daemon's own GetConnectionUnixUser method. It backs both authorization
// checks: Enroll, ListModels, and RemoveModel are root-only, and Verify
// is allowed for root or for the user named in the request
// (confused-deputy protection).
func (d *Daemon) callerUID(sender dbus.Sender) (uint32, error) {
	var uid uint32
	err := d.conn.BusObject().Call("org.freedesktop.DBus.GetConnectionUnixUser", 0, string(sender)).Store(&uid)
	if err != nil {
		return 0, fmt.Errorf("resolve caller uid: %w", err)
	}
	return uid, nil
}
