/*
Package errors defines the coded errors Sahara returns to its callers.

Every failure that crosses a package boundary is an *Error carrying a
stable ErrorCode, a human message, optional structured Details and an
optional Cause. Codes are what callers branch on; messages are for
people and may change.

# Codes

	NOT_FOUND              a referenced object does not exist
	INVALID_DATA           a malformed or inconsistent request
	DELETION_FAILED        a delete refused by protection or usage rules
	UPDATE_FAILED          an update refused by protection, usage or status
	REMOTE_COMMAND_FAILED  a command on an instance exited non-zero
	TIMEOUT                a wait ran out
	DEPENDENCY_CYCLE       services that cannot be ordered for install

The remaining codes are cluster topology violations raised by package
mapr/validation, one per rule: REQUIRED_SERVICE_MISSING, LESS_THAN_COUNT,
MORE_THAN_COUNT, EVEN_COUNT, INVALID_COMPONENT_COUNT,
NODE_REQUIRED_SERVICE_MISSING, NOT_REQUIRED_IMAGE and NO_VOLUMES.

# Matching

Each code has a sentinel. errors.Is matches by code only, so a sentinel
matches any error with that code anywhere in the chain, whatever its
message or details:

	if errors.Is(err, sherrors.ErrNotFound) {
		...
	}

CodeOf and DetailOf read the first *Error in a chain, which is handy when
branching on several codes:

	switch sherrors.CodeOf(err) {
	case sherrors.CodeNotFound:
		existing = nil
	case sherrors.CodeDeletionFailed, sherrors.CodeUpdateFailed:
		holders, _ := sherrors.DetailOf(err, "holders")
		fmt.Println("in use by", holders)
	}

# Details

Constructors record what a caller might need to act on without parsing the
message:

	NotFound                kind, id
	DeletionFailed          holders (sorted) when objects reference the target
	UpdateFailed            holders, or status for busy clusters
	RemoteCommandFailed     host, command, exit_code, output
	LessThanCount etc.      component, expected, actual
	NodeRequiredServiceMissing  service, node_group, required_by

WithDetail adds more and returns the error, so details chain onto a
constructor:

	return sherrors.NotFound("file", path).WithDetail("host", host)

Wrap attaches a code to a lower-level error while keeping it as the Cause;
Error() then prints both.
*/
package errors
