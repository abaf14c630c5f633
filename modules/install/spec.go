package install

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// Package is a parsed requirement.
type Package struct {
	Name string
	// Version is set only for exact `==` pins.
	Version string
	// Spec is the requirement as handed to the package manager.
	Spec string
}

var (
	nameRegex    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?(\[[A-Za-z0-9,._-]+\])?$`)
	versionRegex = regexp.MustCompile(`^[A-Za-z0-9.+!*-]+$`)
)

// parseSpec parses `name`, `name==version` or `name<op>constraint`.
func parseSpec(raw string) (Package, error) {
	spec := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if spec == "" {
		return Package{}, fmt.Errorf("empty package spec")
	}

	if name, version, ok := strings.Cut(spec, "=="); ok {
		if !nameRegex.MatchString(name) || !versionRegex.MatchString(version) {
			return Package{}, fmt.Errorf("invalid package spec '%s'", raw)
		}
		return Package{Name: name, Version: version, Spec: spec}, nil
	}

	name := spec
	if i := strings.IndexAny(spec, "<>!~="); i >= 0 {
		name = spec[:i]
	}
	if !nameRegex.MatchString(name) {
		return Package{}, fmt.Errorf("invalid package spec '%s'", raw)
	}
	return Package{Name: name, Spec: spec}, nil
}

func parseSpecs(raw []string) ([]Package, error) {
	pkgs := make([]Package, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		p, err := parseSpec(r)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return nil, fmt.Errorf("package '%s' listed more than once", p.Name)
		}
		seen[key] = true
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

func unpinnedNames(pkgs []Package) []string {
	var out []string
	for _, p := range pkgs {
		if p.Version == "" {
			out = append(out, p.Name)
		}
	}
	return out
}

// parsePipShow reads the `Key: value` lines printed by `pip show`.
func parsePipShow(out string) map[string]string {
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return fields
}
