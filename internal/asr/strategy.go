package asr

// Strategy is the recognition path chosen for a payload
type Strategy string

const (
	Synchronous  Strategy = "sync"
	Asynchronous Strategy = "async"
)

// ShortFormLimitSeconds is the longest audio the one-shot endpoint accepts
const ShortFormLimitSeconds = 60.0

// SelectStrategy routes audio shorter than the short-form limit to the
// synchronous endpoint and everything else to a recognition task
func SelectStrategy(seconds float64) Strategy {
	if seconds < ShortFormLimitSeconds {
		return Synchronous
	}
	return Asynchronous
}
