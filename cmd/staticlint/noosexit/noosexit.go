// Package noosexit defines an analyzer that reports direct os.Exit
// calls inside main.main. Exiting there skips deferred cleanup such as
// flushing the logger and closing the storage file.
package noosexit

import (
	"go/ast"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports direct use of os.Exit in the main function of
// package main.
var Analyzer = &analysis.Analyzer{
	Name: "noosexit",
	Doc:  "prohibits direct use of os.Exit in main.main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		// Generated files under the go-build cache are not ours to lint.
		if isGoBuildCacheFile(pass.Fset.File(file.Pos()).Name()) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil {
				continue
			}

			inspectMainBody(pass, fn)
		}
	}
	return nil, nil
}

func inspectMainBody(pass *analysis.Pass, fn *ast.FuncDecl) {
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Exit" {
			return true
		}

		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "os" {
			pass.Reportf(call.Pos(), "avoid using os.Exit in main.main")
		}

		return true
	})
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
