package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigNotAFile(path string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "configuration path is not a file").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration file is invalid").
		WithContext("path", path)
}

func ConfigRequired(field string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

func UnknownBuilder(kind string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "unknown builder").
		WithContext("builder", kind)
}

// Run preconditions

func AlreadyRunning(name, lockPath string) *ClassifiedError {
	return New(CategoryConcurrency, SeverityBenign, "builder already running").
		WithContext("name", name).
		WithContext("lock", lockPath)
}

func CheckoutMissing(path string) *ClassifiedError {
	return New(CategoryEnvironment, SeverityBenign, "checkout not existing").
		WithContext("path", path)
}

// Persistence and internal errors

func StateError(operation string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "state operation failed").
		WithContext("operation", operation)
}

func InternalError(message string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
