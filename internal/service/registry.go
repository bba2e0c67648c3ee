package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Registry validates service manifests and drives their lifecycle in
// dependency order. A missing dependency, an unsatisfied version
// constraint, or a cycle is a fatal startup error.
type Registry struct {
	log      *slog.Logger
	services []Service
	ordered  []Service // set by Start
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = discardLogger
	}
	return &Registry{log: log}
}

// Register adds services. Call before Start.
func (r *Registry) Register(services ...Service) {
	r.services = append(r.services, services...)
}

// Start checks every manifest, orders the services topologically, and
// runs Startup then PostStartup through the whole set. Any failure
// aborts the start and is returned.
func (r *Registry) Start(ctx context.Context) error {
	ordered, err := r.resolve()
	if err != nil {
		return err
	}
	r.ordered = ordered

	for _, svc := range ordered {
		m := svc.Manifest()
		if err := svc.Startup(ctx); err != nil {
			return fmt.Errorf("starting service %s: %w", m.Name, err)
		}
		r.log.Info("service started", "name", m.Name, "version", m.Version)
	}
	for _, svc := range ordered {
		if err := svc.PostStartup(ctx); err != nil {
			return fmt.Errorf("post-startup of service %s: %w", svc.Manifest().Name, err)
		}
	}
	return nil
}

// Shutdown stops services in reverse start order. Errors are logged
// and collected rather than aborting the remaining shutdowns.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.ordered) - 1; i >= 0; i-- {
		svc := r.ordered[i]
		if err := svc.Shutdown(ctx); err != nil {
			r.log.Error("service shutdown failed", "name", svc.Manifest().Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve verifies dependencies and returns a deterministic
// topological order (ties broken by name).
func (r *Registry) resolve() ([]Service, error) {
	byName := make(map[string]Service, len(r.services))
	for _, svc := range r.services {
		m := svc.Manifest()
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate service %q", m.Name)
		}
		byName[m.Name] = svc
	}

	for _, svc := range r.services {
		m := svc.Manifest()
		for dep, constraint := range m.Requires {
			depSvc, ok := byName[dep]
			if !ok {
				return nil, fmt.Errorf("service %s requires %s %s but it is not registered",
					m.Name, dep, constraint)
			}
			ok, err := versionSatisfies(depSvc.Manifest().Version, constraint)
			if err != nil {
				return nil, fmt.Errorf("service %s requirement on %s: %w", m.Name, dep, err)
			}
			if !ok {
				return nil, fmt.Errorf("service %s requires %s %s but version %s is registered",
					m.Name, dep, constraint, depSvc.Manifest().Version)
			}
		}
	}

	// Kahn's algorithm over sorted names for a stable order.
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		m := byName[name].Manifest()
		indegree[name] = len(m.Requires)
		for dep := range m.Requires {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	ordered := make([]Service, 0, len(names))
	for len(queue) > 0 {
		sort.Strings(queue)
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byName[name])
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(ordered) != len(names) {
		var cyclic []string
		for name, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("dependency cycle among services: %s", strings.Join(cyclic, ", "))
	}
	return ordered, nil
}

// versionSatisfies checks a dotted version against a constraint like
// ">=1.0.0", "==1.2", "<2.0". A bare version means exact match.
func versionSatisfies(version, constraint string) (bool, error) {
	constraint = strings.TrimSpace(constraint)
	op := "=="
	rest := constraint
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(constraint, candidate) {
			op = candidate
			rest = strings.TrimSpace(constraint[len(candidate):])
			break
		}
	}

	have, err := parseVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	want, err := parseVersion(rest)
	if err != nil {
		return false, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	cmp := compareVersions(have, want)
	switch op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func parseVersion(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("empty version")
	}
	return out, nil
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
