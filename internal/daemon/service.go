package daemon

import (
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/visage-project/visage/internal/ipc"
)

// service is the D-Bus method table exported at ipc.ObjectPath. Every
// method's final parameter of type dbus.Sender is filled in by godbus
// with the caller's unique connection name, never by the caller itself.
type service struct {
	d *Daemon
}

// requireRoot refuses a call whose caller is not root (uid 0), full
// stop. Enroll, ListModels, and RemoveModel mutate or reveal a user's
// enrolled models and are root-only per spec's authorization table;
// they grant no self-match relaxation.
func (s *service) requireRoot(sender dbus.Sender) *dbus.Error {
	uid, err := s.d.callerUID(sender)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	if uid != 0 {
		return dbus.MakeFailedError(errNotAuthorized)
	}
	return nil
}

// authorizeUser refuses a call whose caller is neither root (uid 0)
// nor the user named in the request. This self-or-root relaxation is
// reserved for Verify alone, where it closes the confused-deputy gap
// of a non-root caller probing another account's face match without
// being able to mutate or enumerate that account's models.
func (s *service) authorizeUser(sender dbus.Sender, user string) *dbus.Error {
	uid, err := s.d.callerUID(sender)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	if uid == 0 {
		return nil
	}
	callerName, err := localUsername(uid)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	if callerName != user {
		return dbus.MakeFailedError(errNotAuthorized)
	}
	return nil
}

// engineTimeout returns the worker-side per-request deadline, derived
// from the daemon's own VERIFY_TIMEOUT_SECS configuration — independent
// of and coarser than the client-facing ipc.VerifyTimeout bound the PAM
// client applies to its own D-Bus call, per spec's two-timeout model.
func (s *service) engineTimeout() time.Duration {
	return time.Duration(s.d.worker.cfg.VerifyTimeoutSecs) * time.Second
}

func (s *service) Enroll(user, label string, sender dbus.Sender) (string, *dbus.Error) {
	if dErr := s.requireRoot(sender); dErr != nil {
		return "", dErr
	}
	resp := s.d.worker.submit(request{
		kind:     kindEnroll,
		user:     user,
		label:    label,
		deadline: time.Now().Add(s.engineTimeout() * 3),
	})
	if resp.err != nil {
		return "", dbus.MakeFailedError(resp.err)
	}
	return resp.modelID, nil
}

func (s *service) Verify(user string, sender dbus.Sender) (bool, *dbus.Error) {
	if dErr := s.authorizeUser(sender, user); dErr != nil {
		return false, dErr
	}
	resp := s.d.worker.submit(request{
		kind:     kindVerify,
		user:     user,
		deadline: time.Now().Add(s.engineTimeout()),
	})
	if resp.err != nil {
		return false, dbus.MakeFailedError(resp.err)
	}
	return resp.verified, nil
}

func (s *service) ListModels(user string, sender dbus.Sender) ([]ipc.ModelInfo, *dbus.Error) {
	if dErr := s.requireRoot(sender); dErr != nil {
		return nil, dErr
	}
	resp := s.d.worker.submit(request{
		kind:     kindListModels,
		user:     user,
		deadline: time.Now().Add(s.engineTimeout()),
	})
	if resp.err != nil {
		return nil, dbus.MakeFailedError(resp.err)
	}

	infos := make([]ipc.ModelInfo, len(resp.models))
	for i, m := range resp.models {
		infos[i] = ipc.ModelInfo{
			ModelID:      m.ModelID,
			Label:        m.Label,
			CreatedAt:    m.CreatedAt.Unix(),
			QualityScore: m.QualityScore,
		}
	}
	return infos, nil
}

func (s *service) RemoveModel(user, modelID string, sender dbus.Sender) (bool, *dbus.Error) {
	if dErr := s.requireRoot(sender); dErr != nil {
		return false, dErr
	}
	resp := s.d.worker.submit(request{
		kind:     kindRemoveModel,
		user:     user,
		modelID:  modelID,
		deadline: time.Now().Add(s.engineTimeout()),
	})
	if resp.err != nil {
		return false, dbus.MakeFailedError(resp.err)
	}
	return resp.removed, nil
}

// Status requires no per-user authorization: it reveals only aggregate
// and configuration information, never per-user model data.
func (s *service) Status() (ipc.StatusReply, *dbus.Error) {
	resp := s.d.worker.submit(request{
		kind:     kindStatus,
		deadline: time.Now().Add(s.engineTimeout()),
	})
	if resp.err != nil {
		return ipc.StatusReply{}, dbus.MakeFailedError(resp.err)
	}

	st := resp.status
	return ipc.StatusReply{
		CameraDevice:   st.cameraDevice,
		PixelFormat:    st.pixelFormat,
		FrameWidth:     st.width,
		FrameHeight:    st.height,
		ModelDir:       st.modelDir,
		EmitterEnabled: st.emitterEnabled,
		EmitterActive:  st.emitterActive,
		EnrolledUsers:  st.enrolledUsers,
		EnrolledModels: st.enrolledModels,
		Uptime:         int64(time.Since(s.d.worker.started).Seconds()),
	}, nil
}
