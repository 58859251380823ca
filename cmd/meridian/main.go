// Command meridian is a terminal client for the multi-tenant backend. It keeps
// the session in a local credential file and resolves the tenant from the
// location it is pointed at.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	dErrors "meridian/pkg/domain-errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close(ctx)
	if err != nil {
		// Handled failures were already shown as notifications.
		if !dErrors.HasCode(err, dErrors.CodeHandled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
