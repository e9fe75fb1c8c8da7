package yara

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rule EvilDropper : malware dropper {
    meta:
        author = "test"
        description = "detects evil dropper strings"
    strings:
        $a = "evil_payload_marker"
        $b = "second_marker"
    condition:
        any of them
}

rule Disabled {
    meta:
        enabled = "false"
    strings:
        $a = "should_not_match"
    condition:
        $a
}

rule NoStrings {
    condition:
        true
}
`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(sampleRules, "sample")
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "EvilDropper", rules[0].Name)
	assert.Equal(t, "sample", rules[0].Namespace)
	assert.ElementsMatch(t, []string{"malware", "dropper"}, rules[0].Tags)
	assert.Equal(t, "test", rules[0].Meta["author"])
	require.NotNil(t, rules[0].Pattern)

	assert.Equal(t, "Disabled", rules[1].Name)
	assert.False(t, rules[1].Enabled)

	assert.Equal(t, "NoStrings", rules[2].Name)
	assert.Nil(t, rules[2].Pattern)
}

func TestParseRules_UnbalancedBraces(t *testing.T) {
	_, err := ParseRules(`rule Broken { strings: $a = "x" condition: $a`, "x")
	assert.Error(t, err)
}

func TestParseRules_IgnoresRuleKeywordInString(t *testing.T) {
	rules, err := ParseRules(`rule Real { strings: $a = "not a rule keyword here" condition: $a }`, "x")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Real", rules[0].Name)
}

func TestScanner_Scan(t *testing.T) {
	rules, err := ParseRules(sampleRules, "sample")
	require.NoError(t, err)
	scanner := NewScanner(&Ruleset{Rules: rules})

	ctx := context.Background()
	matches, err := scanner.ScanWithTimeout(ctx, []byte("prefix evil_payload_marker suffix"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "EvilDropper", matches[0].RuleName)
}

func TestScanner_SkipsDisabledRules(t *testing.T) {
	rules, err := ParseRules(sampleRules, "sample")
	require.NoError(t, err)
	scanner := NewScanner(&Ruleset{Rules: rules})

	matches, err := scanner.ScanWithTimeout(context.Background(), []byte("should_not_match"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestHashRules_StableAcrossCalls(t *testing.T) {
	a, _ := ParseRules(sampleRules, "sample")
	b, _ := ParseRules(sampleRules, "sample")
	assert.Equal(t, hashRules(a), hashRules(b))
	assert.NotEmpty(t, hashRules(a))
}
