// Package journald tails the systemd journal.
//
// Entries are filtered by unit the way journalctl -u does and delivered as
// flat string documents with two synthesized fields: __TARGET_UNIT, the unit
// the entry belongs to, and __TIMESTAMP, the entry time in Unix seconds.
package journald

import (
	"errors"
	"strconv"

	"github.com/iot2db/iot2db/internal/document"
)

const (
	TargetUnitField = "__TARGET_UNIT"
	TimestampField  = "__TIMESTAMP"
)

// ErrUnsupported is returned on platforms without a systemd journal.
var ErrUnsupported = errors.New("journald is not supported on this platform")

// matcher is the subset of the journal API used to install unit filters.
type matcher interface {
	AddMatch(match string) error
	AddDisjunction() error
}

// addUnitMatches installs, per unit, the three alternatives journalctl
// uses: messages from the unit itself, messages from PID 1 about the unit,
// and messages from root-owned processes about the unit.
func addUnitMatches(m matcher, units []string) error {
	for _, unit := range units {
		steps := [][]string{
			{"_SYSTEMD_UNIT=" + unit},
			{"_PID=1", "UNIT=" + unit},
			{"_UID=0", "OBJECT_SYSTEMD_UNIT=" + unit},
		}
		for _, step := range steps {
			for _, match := range step {
				if err := m.AddMatch(match); err != nil {
					return err
				}
			}
			if err := m.AddDisjunction(); err != nil {
				return err
			}
		}
	}
	return nil
}

// targetUnit returns the unit an entry belongs to.
func targetUnit(fields map[string]string) (string, bool) {
	if fields["_UID"] == "0" {
		if unit, ok := fields["OBJECT_SYSTEMD_UNIT"]; ok {
			return unit, true
		}
	}
	if fields["_PID"] == "1" {
		if unit, ok := fields["UNIT"]; ok {
			return unit, true
		}
	}
	unit, ok := fields["_SYSTEMD_UNIT"]
	return unit, ok
}

// toDocument converts entry fields. realtime is in microseconds since the
// epoch.
func toDocument(fields map[string]string, realtime uint64) document.Document {
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	if unit, ok := targetUnit(fields); ok {
		doc[TargetUnitField] = unit
	}
	doc[TimestampField] = strconv.FormatUint(realtime/1_000_000, 10)
	return doc
}
