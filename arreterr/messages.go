package arreterr

var messages = map[Errno]string{
	NoDebugSupport: "no debug support",
	NoContentInfo:  "core does not support content info",

	NoContentLoaded:      "no content loaded",
	UnknownMemoryRegion:  "unknown memory region: %s",
	UnknownCPU:           "unknown cpu: %s",
	UnknownSystem:        "unknown system: %s",

	Usage: "usage: %s",

	SubscriptionFailed: "subscription failed (core may not support this breakpoint type)",

	CoreBlocked: "cannot save state while core thread is blocked",

	BadRange:     "bad range: %s",
	InvalidLabel: "invalid label: must match [a-zA-Z_][a-zA-Z0-9_]*",
	BadCommand:   "bad command: %s",

	BreakpointUnknown:   "breakpoint #%v is not defined",
	BreakpointDuplicate: "breakpoint already exists (%v)",
	SearchNotActive:     "no active memory search",

	StackMaxDepth:  "stack trace reached maximum depth",
	StackScanLimit: "stack trace prologue scan limit reached",
	StackInvalidSP: "stack trace found invalid stack pointer",
	StackInvalidRA: "stack trace found invalid return address",
	StackReadError: "stack trace could not read memory",
}
