package logformat

import "time"

// WorkerID identifies a worker on the analyzed computation (and, since the
// analyzer is itself data-parallel across the same worker count, a worker in
// this process).
type WorkerID uint64

// OperatorID identifies an operator as declared by an Operates event.
type OperatorID uint64

// ActivityType classifies a LogRecord / PagEdge.
type ActivityType int

const (
	Scheduling ActivityType = iota
	Processing
	Spinning
	Serialization
	Deserialization
	ControlMessage
	DataMessage
	Waiting
	Busy
)

func (a ActivityType) String() string {
	switch a {
	case Scheduling:
		return "Scheduling"
	case Processing:
		return "Processing"
	case Spinning:
		return "Spinning"
	case Serialization:
		return "Serialization"
	case Deserialization:
		return "Deserialization"
	case ControlMessage:
		return "ControlMessage"
	case DataMessage:
		return "DataMessage"
	case Waiting:
		return "Waiting"
	case Busy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// EventType classifies which side of an activity a LogRecord marks.
type EventType int

const (
	Start EventType = iota
	End
	Sent
	Received
)

func (e EventType) String() string {
	switch e {
	case Start:
		return "Start"
	case End:
		return "End"
	case Sent:
		return "Sent"
	case Received:
		return "Received"
	default:
		return "Unknown"
	}
}

// RawEventKind tags the raw, pre-normalization instrumentation alphabet
// (spec §3 Event kinds).
type RawEventKind int

const (
	KindOperates RawEventKind = iota
	KindChannels
	KindSchedule
	KindMessages
	KindProgress
	KindText
)

// RawEvent is one already-decoded instrumentation event as produced by the
// (out of scope) byte-framing layer. Only the fields relevant to the kind
// are populated; see spec §3.
type RawEvent struct {
	Kind RawEventKind

	// Operates
	OperatorID OperatorID
	Address    []uint64

	// Schedule
	ScheduleSide EventType // Start or End

	// Messages / Progress (both sends and receives)
	ChannelID   uint64
	SeqNo       uint64
	IsSend      bool
	Source      WorkerID
	Target      WorkerID
	HasTarget   bool // Progress sends are broadcasts: no single target
	Length      uint64
	HasLength   bool

	// Text
	Marker string
}

// LogRecord is the normalized per-event record that flows through peeling,
// local-edge synthesis and remote-edge synthesis (spec §3).
type LogRecord struct {
	SeqNo        uint64
	Epoch        uint64
	Timestamp    time.Duration
	LocalWorker  WorkerID
	ActivityType ActivityType
	EventType    EventType

	RemoteWorker    WorkerID
	HasRemoteWorker bool

	OperatorID    OperatorID
	HasOperatorID bool

	ChannelID    uint64
	HasChannelID bool

	CorrelatorID    uint64
	HasCorrelatorID bool

	Length    uint64
	HasLength bool
}

// Time returns the record's LogicalTime.
func (r LogRecord) Time() LogicalTime {
	return LogicalTime{Epoch: r.Epoch, Duration: r.Timestamp}
}
