// Package main builds the PAM client (C6): a C-ABI shared object whose
// one exported function is goAuthenticate, which takes the
// (handle, flags, argc, argv) arguments of pam_sm_authenticate. This
// package does not itself define a pam_sm_authenticate symbol. It
// never runs detection itself — it makes
// a single bounded D-Bus call to the daemon and maps anything other
// than a true reply to IGNORE, so this module is never the reason a
// user fails to reach their password prompt.
package main

/*
#cgo LDFLAGS: -lpam
#include <security/pam_appl.h>
#include <security/pam_modules.h>
#include <stdlib.h>

static void pam_conv_info(pam_handle_t *pamh, const char *message) {
	struct pam_conv *conv;
	if (pam_get_item(pamh, PAM_CONV, (const void **)&conv) != PAM_SUCCESS || conv == NULL) {
		return;
	}

	struct pam_message msg;
	msg.msg_style = PAM_TEXT_INFO;
	msg.msg = message;
	const struct pam_message *msgp = &msg;

	struct pam_response *resp = NULL;
	conv->conv(1, &msgp, &resp, conv->appdata_ptr);
	if (resp != NULL) {
		free(resp);
	}
}
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/visage-project/visage/internal/ipc"
)

var logger = newPAMLogger()

func newPAMLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)

	f, err := os.OpenFile("/var/log/visage-pam.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		l.SetOutput(f)
	}
	return l
}

func pamInfo(pamh *C.pam_handle_t, msg string) {
	cMsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cMsg))
	C.pam_conv_info(pamh, cMsg)
}

//export goAuthenticate
func goAuthenticate(pamh *C.pam_handle_t, _ C.int, _ C.int, _ **C.char) (result C.int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered from panic in goAuthenticate: %v", r)
			result = C.PAM_IGNORE
		}
	}()

	username, err := pamUsername(pamh)
	if err != nil {
		logger.Errorf("pam_get_user failed: %v", err)
		return C.PAM_IGNORE
	}

	verified, err := callVerify(username)
	if err != nil {
		logger.Warnf("verify(%s) failed: %v", username, err)
		return C.PAM_IGNORE
	}
	if !verified {
		logger.Infof("verify(%s): no match", username)
		return C.PAM_IGNORE
	}

	logger.Infof("verify(%s): success", username)
	pamInfo(pamh, "face recognized")
	return C.PAM_SUCCESS
}

func pamUsername(pamh *C.pam_handle_t) (string, error) {
	var cUsername *C.char
	ret := C.pam_get_user(pamh, &cUsername, nil)
	if ret != C.PAM_SUCCESS || cUsername == nil {
		return "", fmt.Errorf("pam_get_user returned %d", int(ret))
	}
	return C.GoString(cUsername), nil
}

// callVerify opens a short-lived system-bus connection bounded to
// ipc.VerifyTimeout and invokes Verify(username). Every failure mode —
// connection failure, timeout, or an explicit false reply — is
// reported as (false, err-or-nil); the caller maps all of them to
// IGNORE uniformly.
func callVerify(username string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ipc.VerifyTimeout)
	defer cancel()

	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("connect system bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	obj := conn.Object(ipc.BusName, dbus.ObjectPath(ipc.ObjectPath))
	call := obj.CallWithContext(ctx, ipc.MethodVerify, 0, username)
	if call.Err != nil {
		return false, fmt.Errorf("verify call: %w", call.Err)
	}

	var verified bool
	if err := call.Store(&verified); err != nil {
		return false, fmt.Errorf("decode verify reply: %w", err)
	}
	return verified, nil
}

func main() {
	// Required by buildmode=c-shared; goAuthenticate is the only
	// exported symbol.
}
