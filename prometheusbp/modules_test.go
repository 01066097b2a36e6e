package prometheusbp

import (
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reddit/secureconfig.go/prometheusbp/promtest"
)

func TestBuildInfoMetrics(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.18.3",
		Path:      "example.com/path/to/main/module",
		Main: debug.Module{
			Path:    "example.com/path/to/main/module",
			Version: "(devel)",
		},
		Deps: []*debug.Module{{
			Path:    "github.com/go-redis/redis/v8",
			Version: "v8.10.0",
		}, {
			Path: "github.com/reddit/oldmodule",
			Replace: &debug.Module{
				Path:    "github.com/reddit/newmodule",
				Version: "v1.42.0",
			},
			Version: "v0.1.2",
		}},
	}

	defer promtest.NewPrometheusMetricTest(t, "secureconfig_go_modules", goModules, prometheus.Labels{
		"go_module":       "example.com/path/to/main/module",
		"module_role":     "main",
		"module_replaced": "false",
		"module_version":  "(devel)",
	}).CheckDelta(1)

	defer promtest.NewPrometheusMetricTest(t, "secureconfig_go_modules", goModules, prometheus.Labels{
		"go_module":       "github.com/go-redis/redis/v8",
		"module_role":     "dependency",
		"module_replaced": "false",
		"module_version":  "v8.10.0",
	}).CheckDelta(1)

	defer promtest.NewPrometheusMetricTest(t, "secureconfig_go_modules", goModules, prometheus.Labels{
		"go_module":       "github.com/reddit/oldmodule",
		"module_role":     "dependency",
		"module_replaced": "true",
		"module_version":  "v0.1.2",
	}).CheckDelta(1)

	RecordModuleVersions(info)
}
