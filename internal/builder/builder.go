// Package builder normalizes raw instrumentation events into LogRecords
// (spec §4.2), grounded on build_lr in original_source/st2-timely/src/lib.rs.
package builder

import (
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/replay"
)

// Build translates one admitted raw tuple into a LogRecord. ok is false when
// the event kind is dropped (Operates, Channels, Text and anything else -
// spec §4.2 last rule).
func Build(a replay.Admitted, localWorker logformat.WorkerID) (logformat.LogRecord, bool) {
	base := logformat.LogRecord{
		SeqNo:       a.SeqNo,
		Epoch:       a.Epoch,
		Timestamp:   a.Time.Duration,
		LocalWorker: localWorker,
	}

	switch a.Event.Kind {
	case logformat.KindSchedule:
		base.ActivityType = logformat.Scheduling
		base.EventType = a.Event.ScheduleSide
		base.OperatorID, base.HasOperatorID = a.Event.OperatorID, true
		return base, true

	case logformat.KindMessages:
		base.ActivityType = logformat.DataMessage
		base.HasChannelID = true
		base.ChannelID = a.Event.ChannelID
		base.HasCorrelatorID = true
		base.CorrelatorID = a.Event.SeqNo
		if a.Event.HasLength {
			base.HasLength = true
			base.Length = a.Event.Length
		}
		if a.Event.IsSend {
			base.EventType = logformat.Sent
			base.HasRemoteWorker = a.Event.HasTarget
			base.RemoteWorker = a.Event.Target
		} else {
			base.EventType = logformat.Received
			base.HasRemoteWorker = true
			base.RemoteWorker = a.Event.Source
		}
		return base, true

	case logformat.KindProgress:
		base.ActivityType = logformat.ControlMessage
		base.HasChannelID = true
		base.ChannelID = a.Event.ChannelID
		base.HasCorrelatorID = true
		base.CorrelatorID = a.Event.SeqNo
		if a.Event.IsSend {
			base.EventType = logformat.Sent
			base.HasRemoteWorker = false // broadcast: no single receiver
		} else {
			base.EventType = logformat.Received
			base.HasRemoteWorker = true
			base.RemoteWorker = a.Event.Source
		}
		return base, true

	case logformat.KindOperates, logformat.KindChannels, logformat.KindText:
		return logformat.LogRecord{}, false

	default:
		return logformat.LogRecord{}, false
	}
}
