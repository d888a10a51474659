package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestParseTime(t *testing.T) {
	unix := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	cases := []struct {
		in   string
		ok   bool
		want int64
	}{
		{"2024-10-10T10:10:10Z", true, unix},
		{"2024-10-10T10:10:10.5Z", true, unix},
		{strconv.FormatInt(unix, 10), true, unix},
		{"", false, 0},
		{"yesterday", false, 0},
		{"-5", false, 0},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in)
		check.Equal(t, tc.ok, ok)
		if tc.ok {
			check.Equal(t, tc.want, got.Unix())
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	check.True(t, ParseTimeDefault("", def).Equal(def))
	check.True(t, ParseTimeDefault("bad", def).Equal(def))
}

func TestParseIntDefault(t *testing.T) {
	check.Equal(t, 7, ParseIntDefault("", 7))
	check.Equal(t, 7, ParseIntDefault("x", 7))
	check.Equal(t, 42, ParseIntDefault("42", 7))
}
