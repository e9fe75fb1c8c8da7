// Package sandbox implements the sandbox monitor & report fuser (C10):
// it takes a raw SandboxTrace collected by an external sandboxing
// orchestrator and turns it into threat indicators and a scored
// DynamicReport (spec §4.10/§6).
package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/threatcore/analysis-core/internal/model"
)

var maliciousPorts = map[int]bool{
	4444: true, 5555: true, 6666: true, 7777: true, 8888: true, 9999: true, 1337: true, 31337: true,
}

// suspiciousPorts are administrative/lateral-movement services that are
// not automatically malicious but worth surfacing in NetworkAnalysis.
var suspiciousPorts = map[int]bool{
	22: true, 23: true, 135: true, 139: true, 445: true, 1433: true, 3389: true, 5900: true,
}

const (
	exfilConnectionBytes = 10 << 20 // 10 MiB per connection
	exfilTotalBytes      = 1 << 20  // 1 MiB total outbound per connection
	evasionSleepMS       = 10000
)

var sensitivePathSubstrings = []string{"system32", "windows", "program files", "appdata", "temp", "startup"}
var exfilPathSubstrings = []string{"passwords", "credentials", "keystore", "wallet", "private", "secret"}
var suspiciousCmdTokens = []string{"powershell", "cmd", "wmic", "reg", "sc", "net", "taskkill", "schtasks"}
var registryPersistenceRoots = []string{"run", "runonce", "services"}
var vmProbeTokens = []string{"vmware", "virtualbox", "qemu", "xen", "vbox", "vmtools"}

// Indicator is one threat signal the fuser extracted from a trace.
type Indicator struct {
	Category string // network|file|process|registry|evasion
	Detail   string
	Evidence string
}

// MaliciousIPs is supplied by the caller (e.g. backed by a reputation
// source); a nil set disables the IP-reputation signal.
type MaliciousIPs map[string]bool

// Fuser turns a SandboxTrace into threat indicators and a DynamicReport.
type Fuser struct {
	maliciousIPs MaliciousIPs
}

// New constructs a Fuser.
func New(maliciousIPs MaliciousIPs) *Fuser {
	if maliciousIPs == nil {
		maliciousIPs = MaliciousIPs{}
	}
	return &Fuser{maliciousIPs: maliciousIPs}
}

// ExtractIndicators walks every event category in trace and emits the
// spec §4.10 threat indicators.
func (f *Fuser) ExtractIndicators(trace model.SandboxTrace) []Indicator {
	var indicators []Indicator

	for _, n := range trace.NetworkEvents {
		if f.maliciousIPs[n.DstIP] {
			indicators = append(indicators, Indicator{"network", "connection to known-malicious IP", n.DstIP})
		}
		if maliciousPorts[n.DstPort] {
			indicators = append(indicators, Indicator{"network", "connection to suspicious port", fmt.Sprintf("%s:%d", n.DstIP, n.DstPort)})
		}
		if n.Bytes > exfilConnectionBytes || n.Bytes > exfilTotalBytes {
			indicators = append(indicators, Indicator{"network", "data exfiltration candidate", fmt.Sprintf("%d bytes to %s", n.Bytes, n.DstIP)})
		}
	}

	for _, e := range trace.FileEvents {
		lower := strings.ToLower(e.Path)
		if containsAny(lower, sensitivePathSubstrings) && isSensitiveOp(e.Operation) {
			indicators = append(indicators, Indicator{"file", "modification under sensitive system path", e.Path})
		}
		if containsAny(lower, exfilPathSubstrings) {
			indicators = append(indicators, Indicator{"file", "access to credential/wallet data", e.Path})
		}
	}

	for _, p := range trace.ProcessEvents {
		lower := strings.ToLower(p.CmdLine)
		if containsAny(lower, suspiciousCmdTokens) {
			indicators = append(indicators, Indicator{"process", "suspicious command-line tool invocation", p.CmdLine})
		}
		if p.Operation == model.ProcOpInject || p.Operation == model.ProcOpHollow {
			indicators = append(indicators, Indicator{"process", "process injection or hollowing", fmt.Sprintf("pid=%d", p.PID)})
		}
	}

	for _, r := range trace.RegistryEvents {
		lower := strings.ToLower(r.KeyPath)
		if isSecurityPolicyKey(lower) {
			indicators = append(indicators, Indicator{"registry", "security policy modification", r.KeyPath})
		}
		if r.Operation == model.RegOpSet && containsAnyRoot(lower, registryPersistenceRoots) {
			indicators = append(indicators, Indicator{"registry", "persistence via autorun key", r.KeyPath})
		}
	}

	for _, s := range trace.Syscalls {
		if isSleepCall(s) {
			indicators = append(indicators, Indicator{"evasion", "long sleep/delay call", s.Name})
		}
		if probesForVM(s) {
			indicators = append(indicators, Indicator{"evasion", "virtualization artifact probing", s.Name})
		}
	}

	return indicators
}

func isSensitiveOp(op model.FileOperation) bool {
	return op == model.FileOpCreate || op == model.FileOpModify || op == model.FileOpDelete
}

func isSecurityPolicyKey(lower string) bool {
	return strings.Contains(lower, "securitypolicy") || strings.Contains(lower, "lsa") || strings.Contains(lower, "windows defender")
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAnyRoot(lower string, roots []string) bool {
	for _, r := range roots {
		if strings.Contains(lower, "\\"+r) || strings.Contains(lower, "/"+r) {
			return true
		}
	}
	return false
}

func isSleepCall(s model.SyscallEvent) bool {
	name := strings.ToLower(s.Name)
	if !strings.Contains(name, "sleep") && !strings.Contains(name, "delay") {
		return false
	}
	if ms, ok := s.Params["duration_ms"].(int); ok {
		return ms > evasionSleepMS
	}
	if ms, ok := s.Params["duration_ms"].(float64); ok {
		return ms > evasionSleepMS
	}
	return false
}

func probesForVM(s model.SyscallEvent) bool {
	for _, v := range s.Params {
		if str, ok := v.(string); ok && containsAny(strings.ToLower(str), vmProbeTokens) {
			return true
		}
	}
	return containsAny(strings.ToLower(s.Name), vmProbeTokens)
}

// Verdict applies the spec §4.10 indicator-count rule: 0 -> Benign,
// 1-3 -> Suspicious, else Malicious.
func Verdict(indicators []Indicator) model.Verdict {
	switch n := len(indicators); {
	case n == 0:
		return model.VerdictBenign
	case n <= 3:
		return model.VerdictSuspicious
	default:
		return model.VerdictMalicious
	}
}

// Confidence applies the spec §4.10 formula:
// 0.7 + 0.05*indicator_count + min(0.2, (|fs|+|net|+|proc|)/100), clamped
// to [0,1].
func Confidence(indicators []Indicator, trace model.SandboxTrace) float64 {
	eventVolume := float64(len(trace.FileEvents) + len(trace.NetworkEvents) + len(trace.ProcessEvents))
	bonus := eventVolume / 100
	if bonus > 0.2 {
		bonus = 0.2
	}
	c := 0.7 + 0.05*float64(len(indicators)) + bonus
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// RiskScore applies the weighted formula decided for this codebase:
// min(100, 15*malicious_net + 10*malicious_file + 8*malicious_proc +
// 12*persistence + 20*evasion), counting indicators per category.
func RiskScore(indicators []Indicator) float64 {
	var net, file, proc, persistence, evasion int
	for _, i := range indicators {
		switch i.Category {
		case "network":
			net++
		case "file":
			file++
		case "process":
			proc++
		case "registry":
			persistence++
		case "evasion":
			evasion++
		}
	}
	score := 15*float64(net) + 10*float64(file) + 8*float64(proc) + 12*float64(persistence) + 20*float64(evasion)
	if score > 100 {
		score = 100
	}
	return score
}

// ThreatLevelFor bands a risk score per the decided scale: [0,10) Clean,
// [10,30) Low, [30,55) Medium, [55,80) High, else Critical.
func ThreatLevelFor(score float64) model.ThreatLevel {
	switch {
	case score < 10:
		return model.ThreatClean
	case score < 30:
		return model.ThreatLow
	case score < 55:
		return model.ThreatMedium
	case score < 80:
		return model.ThreatHigh
	default:
		return model.ThreatCritical
	}
}

// BuildReport assembles the full DynamicReport document (spec §6) from a
// trace and its extracted indicators.
func (f *Fuser) BuildReport(trace model.SandboxTrace) model.DynamicReport {
	indicators := f.ExtractIndicators(trace)
	verdict := Verdict(indicators)
	confidence := Confidence(indicators, trace)
	risk := RiskScore(indicators)
	level := ThreatLevelFor(risk)

	var keyFindings, evasionTechniques, persistenceMechanisms, dataTheft, suspicious []string
	for _, ind := range indicators {
		line := fmt.Sprintf("%s: %s", ind.Detail, ind.Evidence)
		keyFindings = append(keyFindings, line)
		switch ind.Category {
		case "evasion":
			evasionTechniques = append(evasionTechniques, line)
		case "registry":
			persistenceMechanisms = append(persistenceMechanisms, line)
		case "network", "file":
			if strings.Contains(ind.Detail, "exfiltration") || strings.Contains(ind.Detail, "credential") || strings.Contains(ind.Detail, "wallet") {
				dataTheft = append(dataTheft, line)
			} else {
				suspicious = append(suspicious, line)
			}
		default:
			suspicious = append(suspicious, line)
		}
	}

	techniques := buildAttackTechniques(indicators)
	capability := model.Capability{
		Persist:      len(persistenceMechanisms) > 0,
		Exfiltrate:   len(dataTheft) > 0,
		Propagate:    indicatesPropagation(trace),
		Evade:        len(evasionTechniques) > 0,
		ModifySystem: len(trace.FileEvents) > 0 || len(trace.RegistryEvents) > 0,
	}

	iocs := ExtractIOCs(trace)

	return model.DynamicReport{
		ReportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		ExecutiveSummary: model.ExecutiveSummary{
			ThreatLevel: level,
			RiskScore:   risk,
			KeyFindings: keyFindings,
		},
		BehavioralAnalysis: model.BehavioralAnalysis{
			TotalOperations:       len(trace.FileEvents) + len(trace.NetworkEvents) + len(trace.ProcessEvents) + len(trace.RegistryEvents),
			SuspiciousBehaviors:   suspicious,
			EvasionTechniques:     evasionTechniques,
			PersistenceMechanisms: persistenceMechanisms,
			DataTheftIndicators:   dataTheft,
		},
		ThreatAssessment: model.ThreatAssessment{
			IsMalicious:      verdict == model.VerdictMalicious,
			Confidence:       confidence,
			AttackTechniques: techniques,
			Capability:       capability,
		},
		IOCs:            iocs,
		NetworkAnalysis: f.buildNetworkAnalysis(trace),
		FileActivity:    buildFileActivity(trace),
		ProcessActivity: buildProcessActivity(trace),
		Metadata:        map[string]interface{}{"indicator_count": len(indicators), "verdict": verdict},
	}
}

// buildNetworkAnalysis summarizes trace.NetworkEvents the way the
// original's network analyzer reported its connection/protocol counts
// and reputation hits, minus the packet-capture details this codebase
// never collects first-hand.
func (f *Fuser) buildNetworkAnalysis(trace model.SandboxTrace) map[string]interface{} {
	protocolCounts := map[string]int{}
	var totalBytes int64
	var suspiciousPortHits, maliciousIPHits int
	destinations := make([]string, 0, len(trace.NetworkEvents))
	for _, n := range trace.NetworkEvents {
		protocolCounts[string(n.Protocol)]++
		totalBytes += n.Bytes
		if suspiciousPorts[n.DstPort] || maliciousPorts[n.DstPort] {
			suspiciousPortHits++
		}
		if f.maliciousIPs[n.DstIP] {
			maliciousIPHits++
		}
		destinations = append(destinations, fmt.Sprintf("%s:%d", n.DstIP, n.DstPort))
	}
	return map[string]interface{}{
		"connection_count":     len(trace.NetworkEvents),
		"protocol_counts":      protocolCounts,
		"total_bytes":          totalBytes,
		"suspicious_port_hits": suspiciousPortHits,
		"malicious_ip_hits":    maliciousIPHits,
		"destinations":         destinations,
	}
}

// buildFileActivity summarizes trace.FileEvents by operation and flags
// touches under sensitive system paths or credential/wallet stores.
func buildFileActivity(trace model.SandboxTrace) map[string]interface{} {
	opCounts := map[string]int{}
	var sensitivePathHits, exfilPathHits int
	for _, e := range trace.FileEvents {
		opCounts[string(e.Operation)]++
		lower := strings.ToLower(e.Path)
		if containsAny(lower, sensitivePathSubstrings) {
			sensitivePathHits++
		}
		if containsAny(lower, exfilPathSubstrings) {
			exfilPathHits++
		}
	}
	return map[string]interface{}{
		"event_count":          len(trace.FileEvents),
		"operation_counts":     opCounts,
		"sensitive_path_hits":  sensitivePathHits,
		"exfil_path_hits":      exfilPathHits,
	}
}

// buildProcessActivity summarizes trace.ProcessEvents by operation and
// flags injection/hollowing and suspicious command-line tool use.
func buildProcessActivity(trace model.SandboxTrace) map[string]interface{} {
	opCounts := map[string]int{}
	var injectionHits, suspiciousCmdHits int
	for _, p := range trace.ProcessEvents {
		opCounts[string(p.Operation)]++
		if p.Operation == model.ProcOpInject || p.Operation == model.ProcOpHollow {
			injectionHits++
		}
		if containsAny(strings.ToLower(p.CmdLine), suspiciousCmdTokens) {
			suspiciousCmdHits++
		}
	}
	return map[string]interface{}{
		"event_count":          len(trace.ProcessEvents),
		"operation_counts":     opCounts,
		"injection_hits":       injectionHits,
		"suspicious_cmd_hits":  suspiciousCmdHits,
	}
}

// indicatesPropagation reports a worm-like signal: the artifact both
// copied/moved files and reached out over the network, the combination
// the original treated as self-replication rather than plain exfiltration.
func indicatesPropagation(trace model.SandboxTrace) bool {
	copiedFiles := false
	for _, e := range trace.FileEvents {
		if e.Operation == model.FileOpCopy || e.Operation == model.FileOpMove {
			copiedFiles = true
			break
		}
	}
	return copiedFiles && len(trace.NetworkEvents) > 0
}

// buildAttackTechniques maps indicator categories onto the MITRE-style
// technique IDs spec §4.10 names.
func buildAttackTechniques(indicators []Indicator) []model.AttackTechnique {
	var techniques []model.AttackTechnique
	var persistence, exfil, evasion []string
	for _, i := range indicators {
		switch {
		case i.Category == "registry":
			persistence = append(persistence, i.Evidence)
		case strings.Contains(i.Detail, "exfiltration") || strings.Contains(i.Detail, "credential"):
			exfil = append(exfil, i.Evidence)
		case i.Category == "evasion":
			evasion = append(evasion, i.Evidence)
		}
	}
	if len(persistence) > 0 {
		techniques = append(techniques, model.AttackTechnique{MitreID: "T1547", Name: "Boot or Logon Autostart Execution", Evidence: persistence})
	}
	if len(exfil) > 0 {
		techniques = append(techniques, model.AttackTechnique{MitreID: "T1041", Name: "Exfiltration Over C2 Channel", Evidence: exfil})
	}
	if len(evasion) > 0 {
		techniques = append(techniques, model.AttackTechnique{MitreID: "T1497", Name: "Virtualization/Sandbox Evasion", Evidence: evasion})
	}
	return techniques
}
