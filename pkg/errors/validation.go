package errors

import "fmt"

// Validation failures of the MapR cluster topology. Each carries the
// offending component and counts in Details.

// RequiredServiceMissing reports a service absent from the whole cluster.
// requiredBy names the dependent service and may be empty.
func RequiredServiceMissing(service, requiredBy string) *Error {
	msg := fmt.Sprintf("Service '%s' is required", service)
	if requiredBy != "" {
		msg = fmt.Sprintf("Service '%s' is required by '%s'", service, requiredBy)
	}
	return New(CodeRequiredServiceMissing, msg).
		WithDetail("service", service).
		WithDetail("required_by", requiredBy)
}

// LessThanCount reports fewer instances of component than the minimum
func LessThanCount(component string, expected, actual int) *Error {
	return Newf(CodeLessThanCount,
		"At least %d of %s components are required, found %d", expected, component, actual).
		WithDetail("component", component).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// MoreThanCount reports more instances of component than the maximum
func MoreThanCount(component string, expected, actual int) *Error {
	return Newf(CodeMoreThanCount,
		"At most %d of %s components are allowed, found %d", expected, component, actual).
		WithDetail("component", component).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// InvalidComponentCount reports a component whose count must be exact
func InvalidComponentCount(component string, expected, actual int) *Error {
	return Newf(CodeInvalidComponentCount,
		"Exactly %d of %s components are required, found %d", expected, component, actual).
		WithDetail("component", component).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// EvenCount reports an even number of a component that needs a quorum,
// such as ZooKeeper
func EvenCount(component string, actual int) *Error {
	return Newf(CodeEvenCount,
		"Odd number of %s components is required, found %d", component, actual).
		WithDetail("component", component).
		WithDetail("actual", actual)
}

// NodeRequiredServiceMissing reports a service missing from a node group.
// requiredBy names the co-located process that needs it and may be empty.
func NodeRequiredServiceMissing(service, nodeGroup, requiredBy string) *Error {
	msg := fmt.Sprintf("Node group '%s' is missing '%s'", nodeGroup, service)
	if requiredBy != "" {
		msg = fmt.Sprintf("Node group '%s' is missing '%s' required by '%s'", nodeGroup, service, requiredBy)
	}
	return New(CodeNodeRequiredServiceMissing, msg).
		WithDetail("service", service).
		WithDetail("node_group", nodeGroup).
		WithDetail("required_by", requiredBy)
}

// NotRequiredImage reports a node group image that lacks the os tag
// requiredBy needs
func NotRequiredImage(requiredBy, os string) *Error {
	return Newf(CodeNotRequiredImage, "%s requires an image tagged with '%s'", requiredBy, os).
		WithDetail("required_by", requiredBy).
		WithDetail("os", os)
}

// NoVolumes reports a node group with no storage for MapR-FS
func NoVolumes(nodeGroup string) *Error {
	return Newf(CodeNoVolumes,
		"Node group '%s' has neither attached volumes nor ephemeral disk", nodeGroup).
		WithDetail("node_group", nodeGroup)
}
