//go:build linux

package container

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anchor-run/anchor/lib/sys"
)

// parseUser parses a UID or UID:GID credential spec. The GID defaults to 0
// when omitted; both values must be non-negative integers.
func parseUser(spec string) (uid, gid int, err error) {
	uidStr, gidStr, found := strings.Cut(spec, ":")
	if !found {
		gidStr = "0"
	}

	uid, err = strconv.Atoi(uidStr)
	if err != nil || uid < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidUser, spec)
	}
	gid, err = strconv.Atoi(gidStr)
	if err != nil || gid < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidUser, spec)
	}

	return uid, gid, nil
}

// dropPrivileges switches to the requested credentials. The group must be
// set first: after setuid the process no longer has the privilege to change
// its GID.
func dropPrivileges(spec string) error {
	uid, gid, err := parseUser(spec)
	if err != nil {
		return err
	}

	if err := sys.Setgid(gid); err != nil {
		return fmt.Errorf("drop group privileges: %w", err)
	}
	if err := sys.Setuid(uid); err != nil {
		return fmt.Errorf("drop user privileges: %w", err)
	}
	return nil
}
