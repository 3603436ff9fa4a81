// Package validation enforces repository-wide code conventions: the
// typed-domain rule that `any` appears only at declared boundaries, and the
// layering rule that public packages never reach into internal ones.
package validation

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Error is one convention violation, positioned for editor navigation.
type Error struct {
	File    string
	Line    int
	Message string
}

func (e Error) String() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// AnyAllowance approves `any` usage in one file, optionally narrowed to
// specific declarations. The rationale documents why a concrete type cannot
// serve.
type AnyAllowance struct {
	Path      string
	Symbols   []string
	Rationale string
}

// DefaultAnyAllowances lists the boundaries where `any` is the correct type:
// structured-logging attribute lists, JSON codec entry points, and the expvar
// export hook.
func DefaultAnyAllowances() []AnyAllowance {
	return []AnyAllowance{
		{Path: "internal/core/logger.go", Rationale: "slog-style attribute lists"},
		{Path: "internal/core/observability.go", Symbols: []string{"NewExpvarMetricsRecorder"}, Rationale: "expvar.Func returns any"},
		{Path: "internal/archive/archive.go", Symbols: []string{"putJSON", "getJSON"}, Rationale: "json codec boundary"},
	}
}

// CheckAnyUsage walks the Go files under roots (relative to baseDir) and
// reports every `any` outside an allowance. Generic type-parameter
// constraints are always permitted; test files are skipped.
func CheckAnyUsage(baseDir string, roots []string, allowances []AnyAllowance) ([]Error, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	index := buildAllowanceIndex(allowances)
	var violations []Error
	for _, root := range roots {
		rootPath := filepath.Join(baseAbs, root)
		info, err := os.Stat(rootPath)
		if err != nil {
			return nil, fmt.Errorf("stat root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", root)
		}
		err = filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(baseAbs, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			fileViolations, err := checkAnyFile(path, rel, index)
			if err != nil {
				return err
			}
			violations = append(violations, fileViolations...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return violations, nil
}

type allowanceIndex struct {
	wholeFile map[string]bool
	symbols   map[string]map[string]bool
}

func buildAllowanceIndex(allowances []AnyAllowance) allowanceIndex {
	index := allowanceIndex{
		wholeFile: make(map[string]bool),
		symbols:   make(map[string]map[string]bool),
	}
	for _, a := range allowances {
		path := filepath.ToSlash(filepath.Clean(a.Path))
		if len(a.Symbols) == 0 {
			index.wholeFile[path] = true
			continue
		}
		set := index.symbols[path]
		if set == nil {
			set = make(map[string]bool)
			index.symbols[path] = set
		}
		for _, sym := range a.Symbols {
			set[sym] = true
		}
	}
	return index
}

func (index allowanceIndex) allowed(rel, symbol string) bool {
	if index.wholeFile[rel] {
		return true
	}
	return symbol != "" && index.symbols[rel][symbol]
}

func checkAnyFile(path, rel string, index allowanceIndex) ([]Error, error) {
	if index.wholeFile[rel] {
		return nil, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	constraints := typeParamSpans(file)
	var violations []Error
	for _, decl := range file.Decls {
		symbol := declSymbol(decl)
		ast.Inspect(decl, func(n ast.Node) bool {
			ident, ok := n.(*ast.Ident)
			if !ok || ident.Name != "any" {
				return true
			}
			if inSpan(ident.Pos(), constraints) || index.allowed(rel, symbol) {
				return true
			}
			violations = append(violations, Error{
				File:    rel,
				Line:    fset.Position(ident.Pos()).Line,
				Message: fmt.Sprintf("any used in %s without an allowance; use a concrete type", symbol),
			})
			return true
		})
	}
	return violations, nil
}

type span struct{ start, end token.Pos }

func typeParamSpans(file *ast.File) []span {
	var spans []span
	collect := func(fields *ast.FieldList) {
		if fields == nil {
			return
		}
		for _, f := range fields.List {
			if f.Type != nil {
				spans = append(spans, span{start: f.Type.Pos(), end: f.Type.End()})
			}
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncType:
			collect(node.TypeParams)
		case *ast.TypeSpec:
			collect(node.TypeParams)
		}
		return true
	})
	return spans
}

func inSpan(pos token.Pos, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos <= s.end {
			return true
		}
	}
	return false
}

func declSymbol(decl ast.Decl) string {
	switch node := decl.(type) {
	case *ast.FuncDecl:
		return node.Name.Name
	case *ast.GenDecl:
		for _, spec := range node.Specs {
			switch spec := spec.(type) {
			case *ast.TypeSpec:
				return spec.Name.Name
			case *ast.ValueSpec:
				if len(spec.Names) > 0 {
					return spec.Names[0].Name
				}
			}
		}
	}
	return ""
}
