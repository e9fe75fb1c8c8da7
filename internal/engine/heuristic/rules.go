package heuristic

import (
	"regexp"

	"github.com/threatcore/analysis-core/internal/model"
)

func rule(id, name, pattern string, severity model.Severity, confidence float64, types ...string) model.HeuristicRule {
	return model.HeuristicRule{
		ID:                  id,
		Name:                name,
		Pattern:             regexp.MustCompile(pattern),
		Severity:            severity,
		Confidence:          confidence,
		ApplicableFileTypes: types,
	}
}

// DefaultRules is the pre-loaded rule set spec §4.7 names by category.
// It is immutable; Engine.Reload replaces the whole slice under a single
// atomic swap rather than mutating entries.
func DefaultRules() []model.HeuristicRule {
	return []model.HeuristicRule{
		// malware API sequences
		rule("api-process-inject", "process injection API sequence",
			`(?i)VirtualAllocEx.{0,200}WriteProcessMemory.{0,200}CreateRemoteThread`,
			model.SeverityHigh, 0.8, "*"),
		rule("api-hollowing", "process hollowing API sequence",
			`(?i)NtUnmapViewOfSection.{0,200}(VirtualAllocEx|WriteProcessMemory)`,
			model.SeverityHigh, 0.8, "*"),

		// registry autorun persistence
		rule("reg-run-key", "registry Run/RunOnce persistence key",
			`(?i)\\(Run|RunOnce)\\\\`,
			model.SeverityMedium, 0.6, "*"),
		rule("reg-autorun-value", "autorun registry value name",
			`(?i)HKEY_(LOCAL_MACHINE|CURRENT_USER)\\Software\\Microsoft\\Windows\\CurrentVersion\\Run`,
			model.SeverityMedium, 0.65, "*"),

		// process hollowing (separate category from API sequence above)
		rule("hollow-suspend-resume", "suspended-process hollowing pattern",
			`(?i)CREATE_SUSPENDED.{0,200}(SetThreadContext|ResumeThread)`,
			model.SeverityHigh, 0.75, "exe", "dll"),

		// ROP/NOP/shellcode
		rule("nop-sled", "long NOP sled", `(?:\x90){16,}`, model.SeverityMedium, 0.55, "*"),
		rule("shellcode-marker", "common shellcode egg marker", `(\xfc\xe8|\x31\xc0\x50\x68)`, model.SeverityMedium, 0.5, "*"),

		// C2 communication patterns
		rule("c2-beacon-ua", "hardcoded beacon user-agent string",
			`(?i)User-Agent:\s*Mozilla/4\.0 \(compatible;\s*MSIE`,
			model.SeverityMedium, 0.5, "*"),
		rule("c2-raw-ip-callback", "raw IP callback URL", `https?://\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?/`, model.SeverityMedium, 0.55, "*"),

		// suspicious TLDs
		rule("suspicious-tld", "suspicious top-level domain",
			`(?i)https?://[^\s/]+\.(tk|ml|ga|cf|gq)(/|\s|$)`,
			model.SeverityLow, 0.4, "*"),

		// IRC bot patterns
		rule("irc-bot-join", "IRC bot join/command pattern", `(?i)PRIVMSG\s+#\w+\s*:\s*!\w+`, model.SeverityMedium, 0.55, "*"),
		rule("irc-nick-pattern", "IRC NICK/USER handshake", `(?i)\bNICK\s+\S+\r?\nUSER\s+\S+`, model.SeverityLow, 0.4, "*"),

		// base64/XOR/string obfuscation
		rule("base64-blob", "long base64-looking blob", `[A-Za-z0-9+/]{200,}={0,2}`, model.SeverityLow, 0.35, "*"),
		rule("xor-loop", "XOR-decode loop source pattern", `(?i)for\s*\([^)]*\)\s*\{[^}]*\^=`, model.SeverityLow, 0.35, "*"),

		// mining-pool connection strings
		rule("mining-pool-stratum", "stratum mining pool URI", `stratum\+tcp://`, model.SeverityMedium, 0.6, "*"),
		rule("mining-pool-xmr", "Monero mining pool reference", `(?i)(xmrig|monero).{0,40}(pool|stratum)`, model.SeverityMedium, 0.55, "*"),

		// ransomware ransom-note strings
		rule("ransom-note-text", "ransom note language", `(?i)(your files have been encrypted|pay\s+\d+\s*(btc|bitcoin)|decrypt\s+your\s+files)`,
			model.SeverityCritical, 0.85, "*"),

		// Bitcoin address patterns
		rule("btc-address", "Bitcoin address pattern", `\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`, model.SeverityLow, 0.3, "*"),
		rule("btc-bech32-address", "Bitcoin bech32 address pattern", `\bbc1[a-z0-9]{25,39}\b`, model.SeverityLow, 0.3, "*"),

		// credential-stealer patterns
		rule("cred-stealer-chrome", "Chrome credential store access", `(?i)Login Data.{0,80}(AES\.GCM|CryptUnprotectData)`, model.SeverityHigh, 0.7, "*"),
		rule("cred-stealer-outlook", "Outlook credential registry path", `(?i)Software\\Microsoft\\Office\\\d+\.\d+\\Outlook`, model.SeverityMedium, 0.55, "*"),

		// browser-data paths
		rule("browser-data-path", "browser profile data path reference",
			`(?i)(AppData\\Local\\Google\\Chrome\\User Data|AppData\\Roaming\\Mozilla\\Firefox\\Profiles)`,
			model.SeverityLow, 0.4, "*"),
	}
}
