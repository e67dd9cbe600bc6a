package poller

import "github.com/yvesf/mercury-gw/pkg/crc"

func crcAppend(b []byte) []byte {
	return crc.Append(append([]byte(nil), b...))
}
