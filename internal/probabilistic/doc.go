// Package probabilistic estimates the number of distinct strings in a
// collection using bucketed sketches.
//
// Every item is hashed to 32 bits. The top b bits pick one of 2^b buckets
// and the remaining bits give a rank: one plus the number of leading zeros.
// Each bucket keeps the largest rank it has seen. [LogLog] reduces the
// registers with an arithmetic mean and [HyperLogLog] with a harmonic mean
// plus small- and large-range corrections. [NaiveCardinality] is the exact
// answer the estimators are measured against.
//
// All functions are pure and allocate their own registers, so they may be
// called from many goroutines at once.
package probabilistic
