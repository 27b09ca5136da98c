package monitor

// compareTweetIDs orders two snowflake-style tweet ids numerically.
// Ids are decimal strings that can exceed int64 range, so compare by
// length first, then lexicographically. Empty sorts before everything.
func compareTweetIDs(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	}
	return 1
}

// newerTweetID reports whether id is strictly newer than watermark. A
// missing watermark means every tweet is new.
func newerTweetID(id, watermark string) bool {
	if id == "" {
		return false
	}
	return watermark == "" || compareTweetIDs(id, watermark) > 0
}
