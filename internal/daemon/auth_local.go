package daemon

import (
	"errors"
	"fmt"
	"os/user"
)

// errNotAuthorized is returned to callers attempting to act on another
// user's account without root privileges.
var errNotAuthorized = errors.New("caller is not authorized for this user")

// localUsername resolves a Unix UID to its local username via NSS,
// used to match a D-Bus caller's UID against the user named in a
// request.
func localUsername(uid uint32) (string, error) {
	u, err := user.LookupId(fmt.Sprintf("%d", uid))
	if err != nil {
		return "", fmt.Errorf("lookup uid %d: %w", uid, err)
	}
	return u.Username, nil
}
