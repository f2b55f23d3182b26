package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

func NowMilli() int64 {
	return time.Now().UnixMilli()
}
