package app

import (
	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/modules/cmake"
	"github.com/vk/snapforge/modules/dump"
	"github.com/vk/snapforge/modules/make_plugin"
	"github.com/vk/snapforge/modules/nil_plugin"
	"github.com/vk/snapforge/modules/shell_plugin"
)

// coreModules is the definitive list of all plugins that are compiled into
// the snapforge binary.
var coreModules = []registry.Module{
	&nil_plugin.Module{},
	&dump.Module{},
	&make_plugin.Module{},
	&cmake.Module{},
	&shell_plugin.Module{},
}
