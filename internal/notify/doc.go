// Package notify implements the notification dispatch scheduler.
//
// Every Dispatch call scans the published snapshot for three kinds of
// candidates:
//
//   - booking_reminder_day: bookings tomorrow, only while the local time is
//     within the tolerance after the configured trigger hour
//   - booking_reminder_hour: bookings starting one hour from now, plus or
//     minus the tolerance
//   - post_visit: completed bookings today whose hour equals the hour of
//     now minus the post-visit offset
//
// A candidate is identified by its idempotency.Key. It is delivered at most
// once: the key is marked only after the transport confirmed delivery, and a
// failed delivery leaves it unmarked so the next Dispatch within the same
// window tries again. Dispatch never returns an error; failures are counted
// in the Summary.
package notify
