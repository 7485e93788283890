package fattime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, time.January, 15, 10, 30, 0, 0, time.Local)
	date, tm := Pack(ts)

	assert.Equal(t, uint16((2024-1980)<<9|1<<5|15), date)
	assert.Equal(t, uint16(10<<11|30<<5|0), tm)
	assert.Equal(t, ts, Unpack(date, tm))
}

func TestPackClampsPreEpoch(t *testing.T) {
	t.Parallel()

	date, _ := Pack(time.Date(1970, time.June, 1, 0, 0, 0, 0, time.Local))
	assert.Equal(t, Epoch, int(date>>9)+Epoch)
}

func TestStringFormat(t *testing.T) {
	t.Parallel()

	date, tm := Pack(time.Date(2024, time.January, 15, 10, 30, 0, 0, time.Local))
	assert.Equal(t, "20240115103000", String(date, tm))
}

func TestSecondsGranularity(t *testing.T) {
	t.Parallel()

	// FAT time stores two-second steps: 31s packs to 30.
	_, tm := Pack(time.Date(2024, time.March, 3, 8, 0, 31, 0, time.Local))
	assert.Equal(t, 30, int(tm&0x1F)<<1)
}

func TestParseMDTMWithTimestamp(t *testing.T) {
	t.Parallel()

	date, tm, name, ok := ParseMDTM("20240115103000 x")
	require.True(t, ok)
	assert.Equal(t, "x", name)
	assert.Equal(t, "20240115103000", String(date, tm))
}

// Round trip: for any valid packed pair, formatting and reparsing yields the
// same pair and filename.
func TestParseMDTMRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []time.Time{
		time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local),
		time.Date(1999, time.December, 31, 23, 59, 58, 0, time.Local),
		time.Date(2024, time.February, 29, 12, 1, 2, 0, time.Local),
		time.Date(2079, time.June, 15, 6, 33, 44, 0, time.Local),
	}
	for _, ts := range cases {
		wantDate, wantTime := Pack(ts)
		gotDate, gotTime, name, ok := ParseMDTM(String(wantDate, wantTime) + " x")
		require.True(t, ok, "timestamp %s", ts)
		assert.Equal(t, wantDate, gotDate)
		assert.Equal(t, wantTime, gotTime)
		assert.Equal(t, "x", name)
	}
}

func TestParseMDTMRejectsDeviations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
	}{
		{"short string", "2024011510300 f.txt"},
		{"missing space", "20240115103000f.txt"},
		{"non digit", "2024011510300a f.txt"},
		{"bare filename", "f.txt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, name, ok := ParseMDTM(tt.args)
			assert.False(t, ok)
			assert.Equal(t, tt.args, name, "whole argument becomes the filename")
		})
	}
}
