package mqtt

import "strings"

// Match reports whether topic matches the subscription filter, honouring the single-level
// (+) and multi-level (#) wildcards.
func Match(filter, topic string) bool {
	return matchParts(strings.Split(filter, "/"), strings.Split(topic, "/"), 0, 0)
}

func matchParts(pattern, topic []string, pIdx, tIdx int) bool {
	if pIdx >= len(pattern) {
		return tIdx >= len(topic)
	}
	if tIdx >= len(topic) {
		return pIdx == len(pattern)-1 && pattern[pIdx] == "#"
	}
	switch pattern[pIdx] {
	case "#":
		return true
	case "+":
		return matchParts(pattern, topic, pIdx+1, tIdx+1)
	default:
		return pattern[pIdx] == topic[tIdx] && matchParts(pattern, topic, pIdx+1, tIdx+1)
	}
}
