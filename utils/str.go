package utils

import (
	"strconv"
	"time"
	"unsafe"
)

func StrToInt(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

func FtoA(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func IntsToStr(ids []int, sep byte) string {
	buf := make([]byte, 0, len(ids)*3)
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, sep)
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return B2S(buf)
}

func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// TiffTimeTag renders the current time in the TIFFTAG_DATETIME layout.
func TiffTimeTag() string {
	return time.Now().Format("2006:01:02 15:04:05")
}
