package domain

const (
	// DefaultLoopCeiling is the maximum number of scheduler iterations per invocation.
	DefaultLoopCeiling = 50

	// DefaultEntryPoint is the global function invoked for every request.
	DefaultEntryPoint = "process"

	// NoBodySentinel is the wire value the host uses to encode "no body".
	NoBodySentinel = "GCORE_FASTEDGE_NO_BODY"

	// StatusUnset is the response status before anything is committed.
	StatusUnset = 0

	// MinStatus and MaxStatus bound a committed status code.
	MinStatus = 100
	MaxStatus = 599
)
