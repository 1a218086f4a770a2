package metrics

import "testing"

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register() // must not panic on double registration
}

func TestCountersDoNotPanic(t *testing.T) {
	Register()
	IncEnqueued("contacts")
	IncSynced("contacts")
	IncRetry("contacts")
	IncDropped("contacts")
	IncDrain()
	SetQueueDepth(3)
}
