package lifecycle

import (
	"strings"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
)

// InstallOrder sorts services so that every service comes after the
// services it depends on. Dependencies outside the given set are ignored.
// Among services whose dependencies are satisfied, declaration order in
// the registry decides.
func InstallOrder(registry *domain.Registry, services []*domain.Service) ([]*domain.Service, error) {
	byName := make(map[string]*domain.Service, len(services))
	for _, s := range services {
		byName[s.UIName] = s
	}

	indegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)
	for _, s := range services {
		for _, dep := range s.Dependencies {
			if _, ok := byName[dep]; !ok || dep == s.UIName {
				continue
			}
			indegree[s.UIName]++
			dependents[dep] = append(dependents[dep], s.UIName)
		}
	}

	ordered := make([]*domain.Service, 0, len(services))
	done := make(map[string]bool, len(services))
	for len(ordered) < len(services) {
		var next *domain.Service
		for _, s := range services {
			if done[s.UIName] || indegree[s.UIName] > 0 {
				continue
			}
			if next == nil || registry.Order(s.Key()) < registry.Order(next.Key()) {
				next = s
			}
		}
		if next == nil {
			var cycle []string
			for _, s := range services {
				if !done[s.UIName] {
					cycle = append(cycle, s.UIName)
				}
			}
			return nil, errors.Newf(errors.CodeDependencyCycle,
				"Service dependencies form a cycle between %s", strings.Join(cycle, ", ")).
				WithDetail("services", cycle)
		}

		done[next.UIName] = true
		ordered = append(ordered, next)
		for _, d := range dependents[next.UIName] {
			indegree[d]--
		}
	}
	return ordered, nil
}
