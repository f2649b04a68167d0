/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"
)

// humanReadableSize formats bytes with SI prefixes, e.g. 1500 -> "1.5 kB".
func humanReadableSize(bytes int64) string {
	const unit = 1000
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}

	size := float64(bytes)
	prefix := 0
	for size >= unit*unit && prefix < len("kMGTPE")-1 {
		size /= unit
		prefix++
	}

	return strconv.FormatFloat(size/unit, 'f', 1, 64) + " " + "kMGTPE"[prefix:prefix+1] + "B"
}
