package catalog

import "fmt"

// Operation names an action the permission gate can authorize
type Operation string

const (
	OperationList     Operation = "list"
	OperationRetrieve Operation = "retrieve"
	OperationCreate   Operation = "create"
	OperationUpdate   Operation = "update"
	OperationDelete   Operation = "delete"
	OperationSearch   Operation = "search"
)

// IsWrite reports whether the operation mutates products.
func (o Operation) IsWrite() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// ReadPolicy controls who may list, retrieve and search products
type ReadPolicy string

const (
	// ReadPolicyPublic lets anonymous callers read.
	ReadPolicyPublic ReadPolicy = "public"
	// ReadPolicyAuthenticated requires a caller identity to read.
	ReadPolicyAuthenticated ReadPolicy = "authenticated"
)

// ParseReadPolicy converts a configuration value into a ReadPolicy.
func ParseReadPolicy(v string) (ReadPolicy, error) {
	switch ReadPolicy(v) {
	case ReadPolicyPublic, ReadPolicyAuthenticated:
		return ReadPolicy(v), nil
	case "":
		return ReadPolicyPublic, nil
	}
	return "", fmt.Errorf("unknown read policy %q (use 'public' or 'authenticated')", v)
}

// Gate decides whether a caller may perform an operation
type Gate interface {
	Check(caller *Caller, op Operation) error
}

// StaffGate allows writes to staff callers only and applies ReadPolicy to reads
type StaffGate struct {
	ReadPolicy ReadPolicy
}

// NewStaffGate creates a gate with the given read policy.
func NewStaffGate(policy ReadPolicy) *StaffGate {
	return &StaffGate{ReadPolicy: policy}
}

// Check returns an *AuthorizationError when the caller may not perform op.
func (g *StaffGate) Check(caller *Caller, op Operation) error {
	if op.IsWrite() {
		if caller.IsAnonymous() {
			return &AuthorizationError{Op: op, Err: ErrUnauthenticated}
		}
		if !caller.Staff {
			return &AuthorizationError{Op: op, Err: ErrForbidden}
		}
		return nil
	}

	if g.ReadPolicy == ReadPolicyAuthenticated && caller.IsAnonymous() {
		return &AuthorizationError{Op: op, Err: ErrUnauthenticated}
	}
	return nil
}
