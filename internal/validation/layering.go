package validation

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

const modulePath = "cellcore"

// CheckLayering loads the module from dir and reports public packages
// (pkg/...) that import internal ones. The public surface must stay usable
// without dragging service wiring along.
func CheckLayering(dir string) ([]Error, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedFiles,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	var violations []Error
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("load %s: %v", pkg.PkgPath, pkg.Errors[0])
		}
		imports := make([]string, 0, len(pkg.Imports))
		for path := range pkg.Imports {
			imports = append(imports, path)
		}
		sort.Strings(imports)
		for _, imp := range imports {
			if strings.HasPrefix(imp, modulePath+"/internal/") {
				file := pkg.PkgPath
				if len(pkg.GoFiles) > 0 {
					file = pkg.GoFiles[0]
				}
				violations = append(violations, Error{
					File:    file,
					Message: fmt.Sprintf("public package %s imports internal package %s", pkg.PkgPath, imp),
				})
			}
		}
	}
	return violations, nil
}

// CheckDomainIsolation verifies pkg/domain depends on nothing else in the
// module: it is the shared vocabulary and must stay a leaf.
func CheckDomainIsolation(dir string) ([]Error, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedFiles,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/domain")
	if err != nil {
		return nil, fmt.Errorf("load domain package: %w", err)
	}
	var violations []Error
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("load %s: %v", pkg.PkgPath, pkg.Errors[0])
		}
		for imp := range pkg.Imports {
			if strings.HasPrefix(imp, modulePath+"/") {
				violations = append(violations, Error{
					File:    pkg.PkgPath,
					Message: fmt.Sprintf("domain package imports module package %s", imp),
				})
			}
		}
	}
	return violations, nil
}
