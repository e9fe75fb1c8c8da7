package sandbox

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/tidwall/gjson"

	"github.com/threatcore/analysis-core/internal/model"
)

var ipRE = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
var fqdnRE = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)
var urlRE = regexp.MustCompile(`https?://[^\s"']+`)

// ExtractIOCs pulls IP/FQDN/URL/file-path/hash/process/mutex indicators
// out of a trace (spec §6 dynamic report iocs[]).
func ExtractIOCs(trace model.SandboxTrace) []model.IOC {
	var iocs []model.IOC
	now := time.Now().UTC()
	seen := make(map[string]bool)

	add := func(kind, value, context string) {
		key := kind + ":" + value
		if value == "" || seen[key] {
			return
		}
		seen[key] = true
		iocs = append(iocs, model.IOC{Type: kind, Value: value, Confidence: 0.6, Context: context, FirstSeen: now})
	}

	for _, n := range trace.NetworkEvents {
		add("ip", n.DstIP, "network destination")
	}
	for _, f := range trace.FileEvents {
		add("file_path", f.Path, "file operation: "+string(f.Operation))
	}
	for _, p := range trace.ProcessEvents {
		for _, ip := range ipRE.FindAllString(p.CmdLine, -1) {
			add("ip", ip, "process command line")
		}
		for _, url := range urlRE.FindAllString(p.CmdLine, -1) {
			add("url", url, "process command line")
		}
		add("process", p.CmdLine, "process event")
	}
	for _, s := range trace.Syscalls {
		extractFromSyscallParams(s, add)
	}

	return iocs
}

// extractFromSyscallParams marshals a syscall's heterogeneous Params map
// to JSON and uses gjson to pull out well-known IOC-bearing fields
// (mutex_name, sha256, url, ip) without needing a typed schema per
// syscall.
func extractFromSyscallParams(s model.SyscallEvent, add func(kind, value, context string)) {
	raw, err := json.Marshal(s.Params)
	if err != nil {
		return
	}
	doc := gjson.ParseBytes(raw)
	if v := doc.Get("mutex_name"); v.Exists() {
		add("mutex", v.String(), "syscall "+s.Name)
	}
	if v := doc.Get("sha256"); v.Exists() {
		add("hash", v.String(), "syscall "+s.Name)
	}
	if v := doc.Get("url"); v.Exists() {
		add("url", v.String(), "syscall "+s.Name)
	}
	if v := doc.Get("ip"); v.Exists() {
		add("ip", v.String(), "syscall "+s.Name)
	}
	for _, fqdn := range fqdnRE.FindAllString(raw2str(raw), -1) {
		add("fqdn", fqdn, "syscall "+s.Name)
	}
}

func raw2str(raw []byte) string { return string(raw) }
