package apperr

import "google.golang.org/grpc/codes"

// Kind separates client-correctable failures from transient and server ones
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Retryable reports whether the whole request may be run again.
// Storage failures are retried only a small bounded number of times.
func (k Kind) Retryable() bool {
	return k == KindConflict || k == KindStorage
}

// Code is a machine-readable error code
type Code string

const (
	// Invariant violations
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeInvalidLeader     Code = "INVALID_LEADER"
	CodeDanglingReference Code = "DANGLING_REFERENCE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeAlreadyMember     Code = "ALREADY_MEMBER"
	CodeInvalidValue      Code = "INVALID_VALUE"

	// Request errors
	CodeNotFound            Code = "NOT_FOUND"
	CodeNotMember           Code = "NOT_MEMBER"
	CodeAlreadyApproved     Code = "ALREADY_APPROVED"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeProjectClosed       Code = "PROJECT_CLOSED"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeInconsistentAccount Code = "INCONSISTENT_ACCOUNT"
	CodeReferenced          Code = "REFERENCED"

	CodeConflict Code = "CONFLICT"
	CodeStorage  Code = "STORAGE"
)

// Kind returns the kind every error with this code carries
func (c Code) Kind() Kind {
	switch c {
	case CodeConflict:
		return KindConflict
	case CodeStorage, CodeInconsistentAccount:
		return KindStorage
	}
	return KindValidation
}

// GRPCCode maps the code onto the closest gRPC status code
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidValue, CodeInvalidLeader, CodeDanglingReference:
		return codes.InvalidArgument
	case CodeUnauthorized:
		return codes.PermissionDenied
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyMember, CodeAlreadyExists:
		return codes.AlreadyExists
	case CodeCapacityExceeded:
		return codes.ResourceExhausted
	case CodeNotMember, CodeAlreadyApproved, CodeProjectClosed,
		CodeInvalidTransition, CodeReferenced:
		return codes.FailedPrecondition
	case CodeConflict:
		return codes.Aborted
	case CodeStorage:
		return codes.Unavailable
	case CodeInconsistentAccount:
		return codes.Internal
	}
	return codes.Unknown
}
