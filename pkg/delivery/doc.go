// Package delivery connects the notification lifecycle to the task queue
// and the mail transport.
//
// QueueDispatcher turns a scheduled notification into a delayed queue task;
// Handler executes one delivery attempt per task run. Attempts are bounded
// by a RetryPolicy (three by default, backed off a minute, then five, then
// fifteen): a transient transport failure propagates to the queue for a
// rescheduled attempt while the notification stays scheduled, and the final
// failure, or a permanent one, flips the notification to failed and records
// a failed event. Handler.HandleTerminal plugs into the worker's terminal
// hook as a safety net for tasks that die outside the attempt path.
package delivery
