package ledger

import "go.uber.org/fx"

var Module = fx.Provide(NewRegistry)
