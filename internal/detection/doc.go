// Package detection debounces classifier frames into cart scans.
//
// Each frame is reduced to its top prediction, filtered by a probability
// threshold and a set of sentinel labels, and then gated by a single
// "currently held" slot so one item in view produces one scan per cooldown
// window. Labels missing from the catalog are reported and never held.
package detection
