package domain

// ExecutionContext is the key/value bag a run carries from node to node. The
// engine hands each parallel branch its own copy and folds branch results back
// together with MergeContexts, so top-level keys are branch-local. Nested
// mutable values are shared by reference; handlers must not mutate them
// concurrently.
type ExecutionContext map[string]interface{}

// Well-known context keys carried for compatibility with flows produced by
// earlier releases.
const (
	KeyTriggerData      = "triggerData"
	KeyFoundFiles       = "foundFiles"
	KeyFilesToProcess   = "filesToProcess"
	KeyReceiverFiles    = "receiverFiles"
	KeyPayload          = "payload"
	KeyCorrelationID    = "correlationId"
	KeyEnvironment      = "environment"
	KeySenderAdapter    = "senderAdapterId"
	KeyReceiverAdapters = "receiverAdapterIds"
	KeyTimeoutSeconds   = "timeoutSeconds"
)

// Fork returns an independent shallow copy for a parallel branch.
func (c ExecutionContext) Fork() ExecutionContext {
	forked := make(ExecutionContext, len(c))
	for k, v := range c {
		forked[k] = v
	}
	return forked
}

// With returns a copy of the context extended with the handler result map.
// The receiver is left untouched.
func (c ExecutionContext) With(results map[string]interface{}) ExecutionContext {
	if len(results) == 0 {
		return c
	}
	next := c.Fork()
	for k, v := range results {
		next[k] = v
	}
	return next
}

// Files returns the current file list under the given key, tolerating both
// the typed and the decoded-from-JSON representations.
func (c ExecutionContext) Files(key string) []interface{} {
	switch v := c[key].(type) {
	case []interface{}:
		return v
	case []string:
		files := make([]interface{}, len(v))
		for i, f := range v {
			files[i] = f
		}
		return files
	default:
		return nil
	}
}
