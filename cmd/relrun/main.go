// Command relrun executes a release pipeline described by a releaserc.toml
// file against a fixed plugin set (spec §1, §6).
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/relrun/relrun/internal/builtin/clog"
	_ "github.com/relrun/relrun/internal/builtin/earlyexit"
	_ "github.com/relrun/relrun/internal/builtin/envtoken"
	_ "github.com/relrun/relrun/internal/builtin/git"
	"github.com/relrun/relrun/internal/rtlog"
)

func main() {
	correlationID := rtlog.NewCorrelationID()
	ctx := rtlog.WithCorrelationID(context.Background(), correlationID)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
