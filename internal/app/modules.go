package app

import (
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/modules/checkout"
	"github.com/vk/dispatchgrid/modules/install"
	"github.com/vk/dispatchgrid/modules/run_script"
	"github.com/vk/dispatchgrid/modules/s3"
	"github.com/vk/dispatchgrid/modules/setup_runtime"
	"github.com/vk/dispatchgrid/modules/tmdb_sync"
)

// coreModules is the definitive list of all runner modules that are compiled
// into the dispatchgrid binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&setup_runtime.Module{},
	&install.Module{},
	&run_script.Module{},
	&tmdb_sync.Module{},
	&s3.Module{},
}
