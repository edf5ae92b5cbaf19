package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/mapr/services"
)

func names(ordered []*domain.Service) []string {
	out := make([]string, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, s.UIName)
	}
	return out
}

func TestInstallOrder(t *testing.T) {
	tests := []struct {
		name     string
		services []*domain.Service
		expected []string
	}{
		{
			name: "dependencies first",
			services: []*domain.Service{
				{UIName: "Hive", Dependencies: []string{"YARN", "MapRFS"}},
				{UIName: "YARN", Dependencies: []string{"MapRFS"}},
				{UIName: "MapRFS"},
			},
			expected: []string{"MapRFS", "YARN", "Hive"},
		},
		{
			name: "independent services keep declaration order",
			services: []*domain.Service{
				{UIName: "Drill"},
				{UIName: "Hue"},
				{UIName: "Impala"},
			},
			expected: []string{"Drill", "Hue", "Impala"},
		},
		{
			name: "dependencies outside the set are ignored",
			services: []*domain.Service{
				{UIName: "Oozie", Dependencies: []string{"MySQL", "MapRFS"}},
				{UIName: "MapRFS"},
			},
			expected: []string{"MapRFS", "Oozie"},
		},
		{
			name: "ready service with lower declaration index wins",
			services: []*domain.Service{
				{UIName: "Management", Dependencies: []string{"MapRFS"}},
				{UIName: "Spark"},
				{UIName: "MapRFS"},
			},
			expected: []string{"Spark", "MapRFS", "Management"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := domain.NewRegistry("test", tt.services, nil, nil)
			require.NoError(t, err)

			ordered, err := InstallOrder(registry, tt.services)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(ordered))
		})
	}
}

func TestInstallOrderCycle(t *testing.T) {
	all := []*domain.Service{
		{UIName: "MapRFS"},
		{UIName: "A", Dependencies: []string{"B"}},
		{UIName: "B", Dependencies: []string{"A"}},
	}
	registry, err := domain.NewRegistry("test", all, nil, nil)
	require.NoError(t, err)

	_, err = InstallOrder(registry, all)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDependencyCycle)

	cycle, ok := errors.DetailOf(err, "services")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, cycle)
}

func TestInstallOrderPluginCatalogues(t *testing.T) {
	for _, version := range services.Versions() {
		t.Run(version, func(t *testing.T) {
			registry, err := services.Registry(version)
			require.NoError(t, err)

			var latest []*domain.Service
			seen := make(map[string]bool)
			for _, s := range registry.Services() {
				if !seen[s.UIName] {
					seen[s.UIName] = true
					l, _ := registry.Latest(s.UIName)
					latest = append(latest, l)
				}
			}

			ordered, err := InstallOrder(registry, latest)
			require.NoError(t, err)

			position := make(map[string]int)
			for i, s := range ordered {
				position[s.UIName] = i
			}
			assert.Equal(t, 0, position[services.MapRFSService])
			for _, s := range ordered {
				for _, dep := range s.Dependencies {
					if _, ok := position[dep]; ok {
						assert.Less(t, position[dep], position[s.UIName], "%s before %s", dep, s.UIName)
					}
				}
			}
		})
	}
}
