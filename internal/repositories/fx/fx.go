package fx

import (
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/kv"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/story"
	"go.uber.org/fx"
)

var Module = fx.Options(
	story.Module,
	kv.Module,
)
