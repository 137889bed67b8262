// Command archcheck fails when a package imports across a forbidden layer
// boundary. It reads `go list -json -test ./...` output, either by running
// go list itself or from stdin with -stdin.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const modulePrefix = "wedding-bot/"

// layerRule forbids packages under importer from importing packages under imported.
type layerRule struct {
	importer string
	imported string
}

var layerRules = []layerRule{
	{importer: "pkg/", imported: "internal/"},
	{importer: "pkg/", imported: "modules/"},
	{importer: "pkg/content", imported: "pkg/chat"},
	{importer: "internal/kernel", imported: "internal/driver"},
	{importer: "internal/kernel", imported: "internal/server"},
	{importer: "internal/kernel", imported: "internal/source"},
	{importer: "internal/server", imported: "internal/kernel"},
	{importer: "internal/server", imported: "internal/driver"},
	{importer: "internal/source", imported: "internal/driver"},
	{importer: "internal/source", imported: "internal/server"},
	{importer: "modules/", imported: "internal/"},
}

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	fromStdin := flag.Bool("stdin", false, "read go list JSON from stdin")
	flag.Parse()

	var input io.Reader = os.Stdin
	if !*fromStdin {
		out, err := goList()
		if err != nil {
			fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
			os.Exit(1)
		}
		input = bytes.NewReader(out)
	}

	packages, err := decodePackages(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}
	violations := collectViolations(packages)
	if len(violations) == 0 {
		fmt.Println("arch-check: passed")
		return
	}
	fmt.Println("arch-check: architecture violations:")
	for _, violation := range violations {
		fmt.Printf("  - %s\n", violation)
	}
	os.Exit(1)
}

func goList() ([]byte, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	return out, nil
}

// decodePackages reads a stream of concatenated go list JSON objects.
func decodePackages(r io.Reader) ([]listedPackage, error) {
	decoder := json.NewDecoder(r)
	var packages []listedPackage
	for {
		var pkg listedPackage
		err := decoder.Decode(&pkg)
		if errors.Is(err, io.EOF) {
			return packages, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath != "" {
			packages = append(packages, pkg)
		}
	}
}

// collectViolations returns one sorted, de-duplicated line per offending import.
func collectViolations(packages []listedPackage) []string {
	var violations []string
	for _, pkg := range packages {
		for _, imports := range [][]string{pkg.Imports, pkg.TestImports, pkg.XTestImports} {
			for _, imported := range imports {
				if reason := violationReason(pkg.ImportPath, imported); reason != "" {
					violations = append(violations, fmt.Sprintf("%s -> %s (%s)", pkg.ImportPath, imported, reason))
				}
			}
		}
	}
	slices.Sort(violations)

	return slices.Compact(violations)
}

func violationReason(importer, imported string) string {
	for _, rule := range layerRules {
		if strings.HasPrefix(importer, modulePrefix+rule.importer) &&
			strings.HasPrefix(imported, modulePrefix+rule.imported) {
			return fmt.Sprintf("%s must not import %s", strings.TrimSuffix(rule.importer, "/"), strings.TrimSuffix(rule.imported, "/"))
		}
	}

	return ""
}
