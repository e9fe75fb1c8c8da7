package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestExtractIndicators_Network(t *testing.T) {
	f := New(MaliciousIPs{"1.2.3.4": true})
	trace := model.SandboxTrace{
		NetworkEvents: []model.NetworkEvent{
			{DstIP: "1.2.3.4", DstPort: 80, Bytes: 100},
			{DstIP: "5.6.7.8", DstPort: 4444, Bytes: 100},
		},
	}
	indicators := f.ExtractIndicators(trace)
	require.Len(t, indicators, 2)
}

func TestExtractIndicators_FileAndProcessAndRegistry(t *testing.T) {
	f := New(nil)
	trace := model.SandboxTrace{
		FileEvents: []model.FileEvent{
			{Path: `C:\Windows\System32\evil.dll`, Operation: model.FileOpCreate},
			{Path: `C:\Users\x\wallet.dat`, Operation: model.FileOpRead},
		},
		ProcessEvents: []model.ProcessEvent{
			{CmdLine: "powershell -enc aGVsbG8=", Operation: model.ProcOpCreate},
			{PID: 42, Operation: model.ProcOpHollow},
		},
		RegistryEvents: []model.RegistryEvent{
			{KeyPath: `HKLM\Software\Microsoft\Windows\CurrentVersion\Run\evil`, Operation: model.RegOpSet},
		},
	}
	indicators := f.ExtractIndicators(trace)
	assert.GreaterOrEqual(t, len(indicators), 4)
}

func TestVerdict_Bands(t *testing.T) {
	assert.Equal(t, model.VerdictBenign, Verdict(nil))
	assert.Equal(t, model.VerdictSuspicious, Verdict(make([]Indicator, 2)))
	assert.Equal(t, model.VerdictMalicious, Verdict(make([]Indicator, 5)))
}

func TestRiskScore_ClampedTo100(t *testing.T) {
	indicators := make([]Indicator, 10)
	for i := range indicators {
		indicators[i] = Indicator{Category: "evasion"}
	}
	assert.Equal(t, 100.0, RiskScore(indicators))
}

func TestThreatLevelFor(t *testing.T) {
	assert.Equal(t, model.ThreatClean, ThreatLevelFor(5))
	assert.Equal(t, model.ThreatLow, ThreatLevelFor(15))
	assert.Equal(t, model.ThreatMedium, ThreatLevelFor(40))
	assert.Equal(t, model.ThreatHigh, ThreatLevelFor(60))
	assert.Equal(t, model.ThreatCritical, ThreatLevelFor(90))
}

func TestBuildReport_BenignTraceIsClean(t *testing.T) {
	f := New(nil)
	report := f.BuildReport(model.SandboxTrace{
		FileEvents: []model.FileEvent{{Path: "/tmp/a.txt", Operation: model.FileOpCreate, Timestamp: time.Now()}},
	})
	assert.False(t, report.ThreatAssessment.IsMalicious)
	assert.NotEmpty(t, report.ReportID)
}

func TestBuildReport_MaliciousTraceFlagsTechniques(t *testing.T) {
	f := New(MaliciousIPs{"9.9.9.9": true})
	trace := model.SandboxTrace{
		RegistryEvents: []model.RegistryEvent{
			{KeyPath: `HKLM\Software\Microsoft\Windows\CurrentVersion\Run\evil`, Operation: model.RegOpSet},
		},
		NetworkEvents: []model.NetworkEvent{
			{DstIP: "9.9.9.9", DstPort: 1337, Bytes: 20 << 20},
		},
		ProcessEvents: []model.ProcessEvent{
			{CmdLine: "cmd /c whoami", Operation: model.ProcOpCreate},
			{PID: 1, Operation: model.ProcOpInject},
		},
		Syscalls: []model.SyscallEvent{
			{Name: "NtDelayExecution", Params: map[string]interface{}{"duration_ms": 20000}},
		},
	}
	report := f.BuildReport(trace)
	assert.True(t, report.ThreatAssessment.IsMalicious)
	assert.NotEmpty(t, report.ThreatAssessment.AttackTechniques)
	assert.True(t, report.ThreatAssessment.Capability.Persist)
	assert.True(t, report.ThreatAssessment.Capability.Evade)
	assert.Equal(t, 1, report.NetworkAnalysis["connection_count"])
	assert.Equal(t, 1, report.NetworkAnalysis["malicious_ip_hits"])
	assert.Equal(t, 1, report.NetworkAnalysis["suspicious_port_hits"])
	assert.Equal(t, 2, report.ProcessActivity["event_count"])
	assert.Equal(t, 1, report.ProcessActivity["injection_hits"])
}

func TestBuildReport_FileActivityCountsOperationsAndHits(t *testing.T) {
	f := New(nil)
	trace := model.SandboxTrace{
		FileEvents: []model.FileEvent{
			{Path: `C:\Windows\System32\evil.dll`, Operation: model.FileOpCreate},
			{Path: `C:\Users\x\wallet.dat`, Operation: model.FileOpRead},
		},
	}
	report := f.BuildReport(trace)
	assert.Equal(t, 2, report.FileActivity["event_count"])
	assert.Equal(t, 1, report.FileActivity["sensitive_path_hits"])
	assert.Equal(t, 1, report.FileActivity["exfil_path_hits"])
}

func TestBuildReport_PropagationNeedsCopyAndNetwork(t *testing.T) {
	f := New(nil)

	noNetwork := f.BuildReport(model.SandboxTrace{
		FileEvents: []model.FileEvent{{Path: "/tmp/a.txt", Operation: model.FileOpCopy}},
	})
	assert.False(t, noNetwork.ThreatAssessment.Capability.Propagate)

	copyAndNetwork := f.BuildReport(model.SandboxTrace{
		FileEvents:    []model.FileEvent{{Path: "/tmp/a.txt", Operation: model.FileOpCopy}},
		NetworkEvents: []model.NetworkEvent{{DstIP: "10.0.0.1", DstPort: 80}},
	})
	assert.True(t, copyAndNetwork.ThreatAssessment.Capability.Propagate)
}
