package errors

// WrapOpComponent provides a convenience helper to wrap errors with consistent
// Op and Component propagation. It avoids repetition when creating structured
// errors throughout the codebase. If err is nil, returns nil.
func WrapOpComponent(err error, op Operation, component string) error {
	if err == nil {
		return nil
	}
	return &SyncError{Op: op, Component: component, Err: err}
}

// WrapOpComponentKind provides a convenience helper to wrap errors with Op,
// Component, and Kind. Storage and network failures are marked retryable,
// matching the kind constructors. If err is nil, returns nil.
func WrapOpComponentKind(err error, op Operation, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	retryable := kind == KindStorage || kind == KindNetwork
	return &SyncError{Op: op, Component: component, Kind: kind, Retryable: retryable, Err: err}
}
