package core

import (
	"time"

	"github.com/danmuck/dapcore/internal/protocol/frame"
)

// Well-known RICs of the time broadcast and beacon.
const (
	RICBeacon              uint32 = 8
	RICSkyperTime          uint32 = 2504
	RICSwissphoneTimeUTC   uint32 = 208
	RICAlphaPocTimeUTC     uint32 = 224
	RICSwissphoneTimeLocal uint32 = 200
	RICAlphaPocTimeLocal   uint32 = 216
)

const (
	contentNumeric uint8 = 5
	contentAlpha   uint8 = 6
	speed1200      uint8 = 1
)

// SkyperTime renders "HHMMSS DDMMYY".
func SkyperTime(t time.Time) string {
	return t.Format("150405 020106")
}

// SwissphoneTime renders "XTIME=HHMMDDMMYYXTIME=HHMMDDMMYY".
func SwissphoneTime(t time.Time) string {
	s := t.Format("1504020106")
	return "XTIME=" + s + "XTIME=" + s
}

// AlphaPocTime renders "YYYYMMDDHHMMSS" followed by the timestamp in that layout.
func AlphaPocTime(t time.Time) string {
	return "YYYYMMDDHHMMSS" + t.Format("20060102150405")
}

// UTCTimeFrames is the even-minute broadcast: Skyper, Swissphone and AlphaPoc in UTC.
func UTCTimeFrames(now time.Time) []frame.Frame {
	utc := now.UTC()
	return []frame.Frame{
		frame.NewMessage(contentNumeric, speed1200, RICSkyperTime, 0, SkyperTime(utc)),
		frame.NewMessage(contentAlpha, speed1200, RICSwissphoneTimeUTC, 3, SwissphoneTime(utc)),
		frame.NewMessage(contentAlpha, speed1200, RICAlphaPocTimeUTC, 3, AlphaPocTime(utc)),
	}
}

// LocalTimeFrames is the odd-minute broadcast: Swissphone and AlphaPoc in loc.
func LocalTimeFrames(now time.Time, loc *time.Location) []frame.Frame {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return []frame.Frame{
		frame.NewMessage(contentAlpha, speed1200, RICSwissphoneTimeLocal, 3, SwissphoneTime(local)),
		frame.NewMessage(contentAlpha, speed1200, RICAlphaPocTimeLocal, 3, AlphaPocTime(local)),
	}
}

// BeaconFrame identifies the transmitter by callsign.
func BeaconFrame(callsign string) frame.Frame {
	return frame.NewMessage(contentAlpha, speed1200, RICBeacon, 3, callsign)
}
