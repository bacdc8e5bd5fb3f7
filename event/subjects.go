package event

import "github.com/c360studio/semstreams/natsclient"

// NATS subject names for the routing pipeline. All four live on the ROUTE
// JetStream stream; result delivery to waiting callers additionally uses a
// core NATS subscription on SubjectResult.
const (
	SubjectRequest    = "route.request"
	SubjectToolSignal = "route.signal.tool"
	SubjectPlan       = "route.plan"
	SubjectResult     = "route.result"

	// StreamName is the JetStream stream carrying all routing subjects.
	StreamName = "ROUTE"
)

// Typed subject definitions for compile-time type safety on publish/subscribe.
var (
	Requests = natsclient.NewSubject[RequestEvent](SubjectRequest)
	Signals  = natsclient.NewSubject[ToolSignal](SubjectToolSignal)
	Plans    = natsclient.NewSubject[PlanEvent](SubjectPlan)
	Results  = natsclient.NewSubject[ResultEvent](SubjectResult)
)
