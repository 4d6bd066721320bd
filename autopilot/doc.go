// Scheduling engine for automated posting, commenting, and voting on behalf
// of many users at once.
//
// Each user with automation enabled gets an in-process session: a dedicated
// scheduler loop that, on every tick, checks account health, pulls the next
// eligible action from the user's prioritized queue, waits out a randomized
// safety delay, and executes the action against the content platform. Health
// scoring acts as backpressure: a degrading account idles before it stops.
// Failed actions are retried up to a fixed attempt budget and then recorded
// as terminal failures; authentication failures stop the whole session.
//
// See `cmd/flightdeck` for the daemon built on this package.
package autopilot
