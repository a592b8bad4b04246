// Package events turns a sparse clinical event log into half-open seizure
// intervals and stamps every aligned time sample with interval membership.
//
// A row of the log is a seizure when its eventType starts with the configured
// prefix ("sz") under Unicode case folding. Its interval is
// [onset, onset+duration). The same half-open rule is used by the labeler here
// and by block recovery in package blocks, so reported block boundaries agree
// with the label column sample for sample.
package events
