/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(level logrus.Level, msg string, data logrus.Fields) *logrus.Entry {
	e := logrus.NewEntry(logrus.New())
	e.Time = time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	e.Level = level
	e.Message = msg
	e.Data = data
	return e
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"trace":   logrus.TraceLevel,
		" DEBUG ": logrus.DebugLevel,
		"":        logrus.InfoLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	f := &TextLogFormatter{LoggerName: "dao", NameWidth: 5, NoColor: true}
	b, err := f.Format(entry(logrus.WarnLevel, "page clamped", logrus.Fields{"page": 9, "entity": "item"}))
	require.NoError(t, err)

	line := string(b)
	assert.True(t, strings.HasPrefix(line, "2025-03-04 05:06:07.008  WARN "), line)
	assert.Contains(t, line, "[  dao] : page clamped entity=item page=9\n")
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "dao"}
	b, err := f.Format(entry(logrus.ErrorLevel, "flush failed", logrus.Fields{"error": errors.New("conflict")}))
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "dao", rec["model"])
	assert.Equal(t, "flush failed", rec["message"])
	assert.Equal(t, map[string]interface{}{"error": "conflict"}, rec["fields"])
}

func TestLoggerRegistry(t *testing.T) {
	l := NewLogger("registry-test")
	assert.Same(t, l, NewLogger("registry-test"))

	assert.True(t, SetLoggerLevel("registry-test", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
	assert.False(t, SetLoggerLevel("never-created", "debug"))

	ConfigureConsoleLogFormat("JSON")
	_, isJSON := l.Formatter.(*JSONLogFormatter)
	assert.True(t, isJSON)
	ConfigureConsoleLogFormat("text")
	_, isText := l.Formatter.(*TextLogFormatter)
	assert.True(t, isText)
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("GENDAO_TEST_FLAG", "true")
	t.Setenv("GENDAO_TEST_BAD", "maybe")
	assert.True(t, EnvDefaultBool("GENDAO_TEST_FLAG", false))
	assert.True(t, EnvDefaultBool("GENDAO_TEST_BAD", true))
	assert.False(t, EnvDefaultBool("GENDAO_TEST_UNSET", false))
	assert.Equal(t, "fallback", EnvDefaultString("GENDAO_TEST_UNSET", "fallback"))
}
