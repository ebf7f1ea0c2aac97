// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStringDefaultAndOverride(t *testing.T) {
	assert.Equal(t, "fallback", ParseString("LIVECAP_TEST_ABSENT", "fallback"))

	t.Setenv("LIVECAP_TEST_STR", "set")
	assert.Equal(t, "set", ParseString("LIVECAP_TEST_STR", "fallback"))

	t.Setenv("LIVECAP_TEST_EMPTY", "")
	assert.Equal(t, "fallback", ParseString("LIVECAP_TEST_EMPTY", "fallback"))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 7, ParseInt("LIVECAP_TEST_ABSENT", 7))

	t.Setenv("LIVECAP_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("LIVECAP_TEST_INT", 7))

	t.Setenv("LIVECAP_TEST_INT", "notanumber")
	assert.Equal(t, 7, ParseInt("LIVECAP_TEST_INT", 7))
}

func TestParseInt64(t *testing.T) {
	t.Setenv("LIVECAP_TEST_I64", "5368709120")
	assert.EqualValues(t, 5368709120, ParseInt64("LIVECAP_TEST_I64", 0))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, ParseDuration("LIVECAP_TEST_ABSENT", time.Minute))

	t.Setenv("LIVECAP_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("LIVECAP_TEST_DUR", time.Minute))

	t.Setenv("LIVECAP_TEST_DUR", "soon")
	assert.Equal(t, time.Minute, ParseDuration("LIVECAP_TEST_DUR", time.Minute))
}

func TestParseBool(t *testing.T) {
	for val, want := range map[string]bool{
		"true": true, "1": true, "YES": true,
		"false": false, "0": false, "No": false,
	} {
		t.Setenv("LIVECAP_TEST_BOOL", val)
		assert.Equal(t, want, ParseBool("LIVECAP_TEST_BOOL", !want), "value %q", val)
	}

	t.Setenv("LIVECAP_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("LIVECAP_TEST_BOOL", true))
}
