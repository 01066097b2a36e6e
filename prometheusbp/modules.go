package prometheusbp

import (
	"runtime/debug"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var goModules = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "secureconfig_go_modules",
	Help: "Export the version information for included Go modules, and whether the module is the 'main' module or a 'dependency'.  Always 1",
}, []string{"go_module", "module_role", "module_replaced", "module_version"})

// RecordModuleVersions records the modules linked into this binary in the
// secureconfig_go_modules prometheus metric.
//
// It's called by secureconfig.New, and is not safe to call concurrently.
func RecordModuleVersions(info *debug.BuildInfo) {
	record := func(role string, mod *debug.Module) {
		goModules.With(prometheus.Labels{
			"go_module":       mod.Path,
			"module_role":     role,
			"module_replaced": strconv.FormatBool(mod.Replace != nil),
			"module_version":  mod.Version,
		}).Set(1)
	}

	goModules.Reset()
	record("main", &info.Main)
	for _, dep := range info.Deps {
		record("dependency", dep)
	}
}
