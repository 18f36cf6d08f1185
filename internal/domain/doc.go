// Package domain models barometric sampling and storm prediction.
//
// # Sampling Cycle
//
// A cycle collects raw observations from two independent sensor streams:
//
//	Barometer: BarometerSampleCount (7) pressure observations in hPa.
//	GPS:       GPSSampleCount (5) altitude observations in metres.
//
// Each stream is stopped as soon as it has delivered its count. When both are
// done the batch is fused into one [Reading].
//
// # Consensus Filtering
//
// Raw observations are noisy (GPS multipath, barometer drift). A batch is reduced
// with a pivot cluster: for every sample i, collect every sample j (i included)
// with |s[i]-s[j]| <= threshold, and keep the largest such set. Ties keep the
// first pivot. The cluster is not transitive; two samples that are each within
// the threshold of a pivot may be further apart than the threshold.
//
//	Pressure: threshold 0.1 hPa, majority > 3
//	Altitude: threshold 10 m,    majority > 2
//
// When no majority agrees, [Reduce] falls back to the last nonzero value in the
// history, and only uses the cluster average on a cold start.
//
// # Storm Heuristic
//
// The pressure trend is the least-squares slope, in hPa per hour, over the most
// recent [StormSettings.Window] of history. Pressure may be normalised to sea
// level first using the paired altitude so that climbing a mountain is not read
// as falling pressure:
//
//	p0 = p * (1 - h/44330)^-5.255
//
// A storm is incoming when the slope is at or below -DropRate. Fewer than
// MinSamples distinct timestamps produce no verdict.
//
// # Alerting
//
// [EvaluateAlert] raises at most one notification per storm episode. The episode
// flag is persisted between cycles and cleared once the trend recovers.
package domain
