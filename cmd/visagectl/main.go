// Command visagectl is a thin development CLI wrapping the daemon's
// D-Bus surface: enroll, list, remove, status, and a local camera
// discovery diagnostic that does not require the daemon to be running.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/visage-project/visage/internal/emitter"
	"github.com/visage-project/visage/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "enroll":
		err = runEnroll(args)
	case "list":
		err = runList(args)
	case "remove":
		err = runRemove(args)
	case "status":
		err = runStatus(args)
	case "devices":
		err = runDevices()
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "visagectl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: visagectl <enroll|list|remove|status|devices> [flags]")
}

func connect(ctx context.Context) (dbus.BusObject, *dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("connect system bus: %w", err)
	}
	return conn.Object(ipc.BusName, dbus.ObjectPath(ipc.ObjectPath)), conn, nil
}

func runEnroll(args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	user := fs.String("user", "", "username to enroll")
	label := fs.String("label", "default", "human-readable label for this enrollment")
	_ = fs.Parse(args)
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	ctx := context.Background()
	obj, conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var modelID string
	if err := obj.CallWithContext(ctx, ipc.MethodEnroll, 0, *user, *label).Store(&modelID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	fmt.Printf("enrolled %s: model_id=%s\n", *user, modelID)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "username to list models for")
	_ = fs.Parse(args)
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	ctx := context.Background()
	obj, conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var models []ipc.ModelInfo
	if err := obj.CallWithContext(ctx, ipc.MethodListModels, 0, *user).Store(&models); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models {
		fmt.Printf("%s\t%s\tcreated=%d\tquality=%.3f\n", m.ModelID, m.Label, m.CreatedAt, m.QualityScore)
	}
	return nil
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	user := fs.String("user", "", "username that owns the model")
	modelID := fs.String("model", "", "model id to remove")
	_ = fs.Parse(args)
	if *user == "" || *modelID == "" {
		return fmt.Errorf("-user and -model are required")
	}

	ctx := context.Background()
	obj, conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var removed bool
	if err := obj.CallWithContext(ctx, ipc.MethodRemoveModel, 0, *user, *modelID).Store(&removed); err != nil {
		return fmt.Errorf("remove model: %w", err)
	}
	fmt.Println("removed:", removed)
	return nil
}

func runStatus(_ []string) error {
	ctx := context.Background()
	obj, conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var status ipc.StatusReply
	if err := obj.CallWithContext(ctx, ipc.MethodStatus, 0).Store(&status); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Printf("camera:         %s (%s, %dx%d)\n", status.CameraDevice, status.PixelFormat, status.FrameWidth, status.FrameHeight)
	fmt.Printf("model dir:      %s\n", status.ModelDir)
	fmt.Printf("emitter:        enabled=%v active=%v\n", status.EmitterEnabled, status.EmitterActive)
	fmt.Printf("enrolled:       %d users, %d models\n", status.EnrolledUsers, status.EnrolledModels)
	fmt.Printf("uptime:         %ds\n", status.Uptime)
	return nil
}

// runDevices is a local diagnostic: it does not talk to the daemon at
// all, only to sysfs, so it works even when the daemon refuses to
// start (e.g. a model checksum failure).
func runDevices() error {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	devices, err := emitter.Discover()
	if err != nil {
		return fmt.Errorf("discover devices: %w", err)
	}
	for _, d := range devices {
		ctrl := emitter.Resolve(d.Path, logger)
		fmt.Printf("%s\tdriver=%s\tvendor=%04x\tproduct=%04x\tunsupported=%v\temitter=%v\n",
			d.Path, d.DriverName, d.VendorID, d.ProductID, d.Unsupported, ctrl.Enabled())
	}
	return nil
}
