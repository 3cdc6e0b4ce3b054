// Package domain_test checks the import boundaries between layers.
package domain_test

import (
	"go/build"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/scrapetoapi/scrapetoapi"

// importsOf lists the non-test imports of the package in dir, relative to
// pkg/domain.
func importsOf(t *testing.T, dir string) []string {
	t.Helper()
	pkg, err := build.ImportDir(filepath.FromSlash(dir), build.IgnoreVendor)
	if err != nil {
		t.Fatalf("failed to read package %s: %v", dir, err)
	}
	return pkg.Imports
}

func assertNoImports(t *testing.T, dirs []string, forbidden []string) {
	t.Helper()
	for _, dir := range dirs {
		t.Run(dir, func(t *testing.T) {
			for _, imp := range importsOf(t, dir) {
				for _, f := range forbidden {
					if imp == f || strings.HasPrefix(imp, f+"/") {
						t.Errorf("package %s imports forbidden dependency: %s", dir, imp)
					}
				}
			}
		})
	}
}

// TestNoDomainInfrastructureDependencies keeps the domain packages free of
// service and storage concerns. errors may use net/http for status mapping.
func TestNoDomainInfrastructureDependencies(t *testing.T) {
	assertNoImports(t,
		[]string{"errors", "events"},
		[]string{
			modulePath + "/pkg/service",
			modulePath + "/pkg/transport",
			modulePath + "/pkg/store",
			modulePath + "/pkg/messaging",
			"database/sql",
			"os/exec",
		},
	)
}

// TestScrapeCoreIsPure keeps HTML indexing independent of I/O layers.
func TestScrapeCoreIsPure(t *testing.T) {
	assertNoImports(t,
		[]string{"../scrape"},
		[]string{
			modulePath + "/pkg/fetch",
			modulePath + "/pkg/service",
			modulePath + "/pkg/store",
			modulePath + "/pkg/transport",
			"net/http",
			"os",
		},
	)
}

// TestLayerDependencyDirection ensures dependencies only flow toward the
// domain: infrastructure never reaches up into the service or transport.
func TestLayerDependencyDirection(t *testing.T) {
	assertNoImports(t,
		[]string{"../store", "../cache", "../fetch", "../messaging", "../metrics", "../tracing", "../health"},
		[]string{
			modulePath + "/pkg/service",
			modulePath + "/pkg/transport",
			modulePath + "/pkg/wire",
		},
	)

	assertNoImports(t,
		[]string{"../service"},
		[]string{
			modulePath + "/pkg/transport",
			modulePath + "/pkg/wire",
			"go.etcd.io/bbolt",
			"gorm.io/gorm",
			"github.com/segmentio/kafka-go",
		},
	)
}
