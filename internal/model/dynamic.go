package model

import "time"

// FileOp / NetOp / ProcOp / RegOp are the raw sandbox trace categories
// consumed by the report fuser (C10).

type FileOperation string

const (
	FileOpCreate  FileOperation = "create"
	FileOpRead    FileOperation = "read"
	FileOpModify  FileOperation = "modify"
	FileOpDelete  FileOperation = "delete"
	FileOpCopy    FileOperation = "copy"
	FileOpMove    FileOperation = "move"
	FileOpExecute FileOperation = "execute"
)

type FileEvent struct {
	Timestamp time.Time
	Operation FileOperation
	Path      string
	Outcome   string
}

type NetProtocol string

const (
	NetTCP  NetProtocol = "tcp"
	NetUDP  NetProtocol = "udp"
	NetHTTP NetProtocol = "http"
	NetDNS  NetProtocol = "dns"
)

type NetworkEvent struct {
	Timestamp       time.Time
	Protocol        NetProtocol
	SrcIP           string
	SrcPort         int
	DstIP           string
	DstPort         int
	Bytes           int64
	ConnectionState string
}

type ProcessOperation string

const (
	ProcOpCreate    ProcessOperation = "create"
	ProcOpTerminate ProcessOperation = "terminate"
	ProcOpInject    ProcessOperation = "inject"
	ProcOpHollow    ProcessOperation = "hollow"
)

type ProcessEvent struct {
	Timestamp time.Time
	Operation ProcessOperation
	PID       int
	CmdLine   string
}

type RegistryOperation string

const (
	RegOpCreate RegistryOperation = "create"
	RegOpDelete RegistryOperation = "delete"
	RegOpSet    RegistryOperation = "set"
	RegOpQuery  RegistryOperation = "query"
)

type RegistryEvent struct {
	Timestamp time.Time
	Operation RegistryOperation
	KeyPath   string
}

type SyscallEvent struct {
	Timestamp time.Time
	Name      string
	Params    map[string]interface{}
}

type Screenshot struct {
	Timestamp time.Time
	Image     []byte
}

// SandboxTrace is the complete raw observation stream collected while an
// external orchestrator ran the artifact in an isolated sandbox.
type SandboxTrace struct {
	FileEvents     []FileEvent
	NetworkEvents  []NetworkEvent
	ProcessEvents  []ProcessEvent
	RegistryEvents []RegistryEvent
	Syscalls       []SyscallEvent
	Screenshots    []Screenshot
	PacketCapture  []byte
}

// ThreatLevel bands the executive summary's risk score.
type ThreatLevel string

const (
	ThreatClean    ThreatLevel = "clean"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

type ExecutiveSummary struct {
	ThreatLevel     ThreatLevel
	RiskScore       float64
	KeyFindings     []string
	AffectedSystems []string
}

type BehavioralAnalysis struct {
	TotalOperations        int
	SuspiciousBehaviors    []string
	EvasionTechniques      []string
	PersistenceMechanisms  []string
	DataTheftIndicators    []string
}

type AttackTechnique struct {
	MitreID     string
	Name        string
	Description string
	Evidence    []string
}

type Capability struct {
	Persist    bool
	Exfiltrate bool
	Propagate  bool
	Evade      bool
	ModifySystem bool
}

type ThreatAssessment struct {
	IsMalicious      bool
	Confidence       float64
	Categories       []string
	AttackTechniques []AttackTechnique
	Capability       Capability
}

type IOC struct {
	Type      string // ip|fqdn|url|file_path|hash|process|mutex
	Value     string
	Confidence float64
	Context   string
	FirstSeen time.Time
}

// DynamicReport is the full wire shape produced by the report fuser (C10,
// spec §6).
type DynamicReport struct {
	ReportID           string
	GeneratedAt        time.Time
	ExecutiveSummary   ExecutiveSummary
	BehavioralAnalysis BehavioralAnalysis
	ThreatAssessment   ThreatAssessment
	IOCs               []IOC
	NetworkAnalysis    map[string]interface{}
	FileActivity       map[string]interface{}
	ProcessActivity    map[string]interface{}
	Recommendations    []string
	Metadata           map[string]interface{}
}
