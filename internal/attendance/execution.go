package attendance

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
	"github.com/xkilldash9x/kintai-cli/internal/resolver"
)

// Execution carries everything one workflow run needs. Every phase receives
// it explicitly; nothing is read from package state.
type Execution struct {
	RunID   string
	Action  schemas.Action
	Config  *config.Config
	Browser schemas.BrowsingContext
	Sink    schemas.DiagnosticSink
	Logger  *zap.Logger
}

func (x *Execution) resolver() *resolver.Resolver {
	return resolver.New(x.Browser, x.Config.Resolver, x.Config.Widget, x.Logger)
}
