package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"stitch/internal/services"
)

// serviceProbeTimeout bounds one preflight listing call. Kept short so a
// wedged service cannot stall daemon startup behind it.
const serviceProbeTimeout = 5 * time.Second

// CheckService verifies that a directory adapter is reachable and its
// credentials work by asking it for its user listing.
func CheckService(ctx context.Context, directory services.Directory) Result {
	name := directory.Name()

	checkCtx, cancel := context.WithTimeout(ctx, serviceProbeTimeout)
	defer cancel()

	records, err := directory.ListUsers(services.WithService(checkCtx, name))
	if err != nil {
		return Result{Name: name, Detail: summarizeServiceError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d users)", len(records))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeServiceError produces a human-readable summary for probe failures.
func summarizeServiceError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "health check timed out (service unresponsive)"
	case errors.Is(err, services.ErrAuthorization):
		return "auth failed (check the api key)"
	case errors.Is(err, services.ErrConfiguration):
		return fmt.Sprintf("misconfigured (%v)", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return err.Error()
}
