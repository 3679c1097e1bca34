package audio

import "fmt"

// Timestamp formats a sample offset as "mm-ss-mmm" (minutes, seconds,
// milliseconds), truncating toward zero. Minutes are not capped at 59, so
// recordings longer than an hour produce three-digit minutes.
func Timestamp(sample, sampleRate int) string {
	if sampleRate <= 0 || sample < 0 {
		return "00-00-000"
	}
	ms := int64(sample) * 1000 / int64(sampleRate)
	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	millis := ms % 1000
	return fmt.Sprintf("%02d-%02d-%03d", minutes, seconds, millis)
}
