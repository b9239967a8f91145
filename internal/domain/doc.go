// Package domain models device location, nearby restaurant searches and the
// lifecycle of a single search request.
//
// # Location
//
// A platform location source reports two independent things: whether the
// application may read the device position ([AuthorizationStatus]) and the
// position itself ([TrackedLocation]). Tracked locations start [LocationUnknown],
// become located on every fix and failed when the platform reports an error.
//
// Authorization denial is reported as [PermissionDenied] with a reason that
// tells the user what to do about it:
//
//	denied, location services on   -> authorize the application in settings
//	denied, location services off  -> re-enable location services, then authorize
//	restricted                     -> ask the device administrator
//	anything else                  -> unrecognized status
//
// # Load states
//
// A search controller owns exactly one [LoadState]. The legal paths are:
//
//	uninitialized | error | done -> loading(terms, task)
//	loading(a)                   -> loading(b)        when a != b
//	loading(terms, task)         -> success(data)     only from the same task
//	success                      -> done
//	loading                      -> error(cause)
//
// A transition attempted from any other source state is not applied; the
// controller moves to an error state carrying an [InvariantViolation] with
// both the observed source and the attempted target.
//
// # Search terms
//
// Terms are optional free text. A nil pointer and a pointer to "" are
// different keys; [SameTerms] compares nil-ness first and then the text.
package domain
