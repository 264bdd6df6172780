// Package acquire retrieves transcripts through an ordered chain of
// independent strategies.
//
// # Chain
//
// NewChain sorts strategies by ascending priority once; the order is fixed
// for the chain's lifetime. Extract runs them one at a time and returns the
// first non-empty transcript together with the strategy name. An error or an
// empty transcript moves on to the next strategy. When all fail, Extract
// returns *ExhaustedError carrying the last error message and every attempt.
//
// # Strategies
//
// Priority order of StandardStrategies:
//
//  0. store       previously persisted transcripts
//  1. intercepted transcripts pushed into the CaptureBuffer by a page-side
//     companion (POST /v1/captures)
//  2. innertube   player endpoint, caption track, json3 payload
//  3. timedtext   direct caption endpoint, XML payload
//  4. relay       configured relay service returning JSON segments
//  5. watchpage   ytInitialPlayerResponse scraped from the watch page
//  6. mirrors     Invidious and Piped instances, WebVTT payloads
//
// Strategies may retry internally; mirrors walks every configured instance
// before reporting one outcome to the chain.
package acquire
