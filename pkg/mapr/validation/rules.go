// Package validation checks a MapR cluster topology against the rules its
// services declare.
package validation

import (
	"fmt"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
)

// AtLeast requires count or more instances hosting process
func AtLeast(count int, process string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("at least %d %s", count, process),
		Check: func(t domain.Topology) error {
			if actual := t.InstancesCount(process); actual < count {
				return errors.LessThanCount(process, count, actual)
			}
			return nil
		},
	}
}

// AtMost allows no more than count instances hosting process
func AtMost(count int, process string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("at most %d %s", count, process),
		Check: func(t domain.Topology) error {
			if actual := t.InstancesCount(process); actual > count {
				return errors.MoreThanCount(process, count, actual)
			}
			return nil
		},
	}
}

// Exactly requires count instances hosting process
func Exactly(count int, process string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("exactly %d %s", count, process),
		Check: func(t domain.Topology) error {
			if actual := t.InstancesCount(process); actual != count {
				return errors.InvalidComponentCount(process, count, actual)
			}
			return nil
		},
	}
}

// EachNodeHas requires every node group to run process
func EachNodeHas(process string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("%s on every node", process),
		Check: func(t domain.Topology) error {
			for _, ng := range t.NodeGroups() {
				if !ng.HasProcess(process) {
					return errors.NodeRequiredServiceMissing(process, ng.Name, "")
				}
			}
			return nil
		},
	}
}

// OddCountOf requires an odd number of instances hosting process. A count
// of zero passes; AtLeast covers presence.
func OddCountOf(process string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("odd number of %s", process),
		Check: func(t domain.Topology) error {
			actual := t.InstancesCount(process)
			if actual > 1 && actual%2 == 0 {
				return errors.EvenCount(process, actual)
			}
			return nil
		},
	}
}

// OnSameNode requires every node group running component to also run
// dependency
func OnSameNode(component, dependency string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("%s next to %s", dependency, component),
		Check: func(t domain.Topology) error {
			for _, ng := range t.NodeGroups() {
				if ng.HasProcess(component) && !ng.HasProcess(dependency) {
					return errors.NodeRequiredServiceMissing(dependency, ng.Name, component)
				}
			}
			return nil
		},
	}
}

// DependsOn requires service to be part of the cluster. A key without a
// version accepts any version.
func DependsOn(service domain.ServiceKey, requiredBy string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("%s requires %s", requiredBy, service),
		Check: func(t domain.Topology) error {
			if !t.HasService(service) {
				return errors.RequiredServiceMissing(service.String(), requiredBy)
			}
			return nil
		},
	}
}

// RequiredOS requires node groups running any process of the service named
// requiredBy to boot an image tagged with os
func RequiredOS(os, requiredBy string) domain.Rule {
	return domain.Rule{
		Description: fmt.Sprintf("%s requires %s images", requiredBy, os),
		Check: func(t domain.Topology) error {
			var service *domain.Service
			for _, s := range t.ClusterServices() {
				if s.UIName == requiredBy {
					service = s
					break
				}
			}
			if service == nil {
				return nil
			}
			for _, ng := range t.NodeGroups() {
				if !service.HostedBy(ng.NodeProcesses) {
					continue
				}
				image, err := t.NodeGroupImage(ng)
				if err != nil {
					return err
				}
				if !image.HasTag(os) {
					return errors.NotRequiredImage(requiredBy, os).WithDetail("node_group", ng.Name)
				}
			}
			return nil
		},
	}
}

// HasVolumes requires every node group to have attached volumes or an
// ephemeral disk
func HasVolumes() domain.Rule {
	return domain.Rule{
		Description: "storage on every node",
		Check: func(t domain.Topology) error {
			for _, ng := range t.NodeGroups() {
				if ng.VolumesPerNode > 0 {
					continue
				}
				flavor, err := t.NodeGroupFlavor(ng)
				if err != nil {
					return err
				}
				if flavor.Ephemeral == 0 {
					return errors.NoVolumes(ng.Name)
				}
			}
			return nil
		},
	}
}
