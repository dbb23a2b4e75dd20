package scanner

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Sena-ops/leakguard/internal/model"
)

func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func corePatterns(t *testing.T) []*regexp.Regexp {
	t.Helper()
	rule, ok := DefaultRegistry().Lookup("NomadCore")
	require.True(t, ok)
	c, err := rule.Compile()
	require.NoError(t, err)
	return c.Regexps
}

func TestScanFile(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []model.Violation
	}{
		{
			name:    "clean_header",
			content: "#pragma once\n#include <vector>\n#include \"NomadLog.h\"\n",
		},
		{
			name:    "windows_on_line_5",
			content: "#pragma once\n\n#include <vector>\n\n   #include <windows.h>   \n",
			expected: []model.Violation{
				{File: "Header.h", Line: 5, Text: "#include <windows.h>", Pattern: bannedInclude(`windows\.h>`)},
			},
		},
		{
			name:    "nolint",
			content: "#include <windows.h> // NOLINT\n",
		},
		{
			name:    "allow_marker",
			content: "#include <X11/Xlib.h> // ALLOW_PLATFORM_INCLUDE\n",
		},
		{
			name:    "marker_without_comment_slashes_does_not_suppress",
			content: "#include <X11/Xlib.h> ALLOW_PLATFORM_INCLUDE\n",
			expected: []model.Violation{
				{File: "Header.h", Line: 1, Text: "#include <X11/Xlib.h> ALLOW_PLATFORM_INCLUDE", Pattern: bannedInclude(`X11/`)},
			},
		},
		{
			name:    "tab_separated_include",
			content: "#include\t<alsa/asoundlib.h>\r\n",
			expected: []model.Violation{
				{File: "Header.h", Line: 1, Text: "#include\t<alsa/asoundlib.h>", Pattern: bannedInclude(`alsa/`)},
			},
		},
		{
			name:    "two_patterns_one_line",
			content: "// #include <SDL2/SDL.h> #include <jack/jack.h>\n",
			expected: []model.Violation{
				{File: "Header.h", Line: 1, Text: "// #include <SDL2/SDL.h> #include <jack/jack.h>", Pattern: bannedInclude(`jack/`)},
				{File: "Header.h", Line: 1, Text: "// #include <SDL2/SDL.h> #include <jack/jack.h>", Pattern: bannedInclude(`SDL2/`)},
			},
		},
		{
			name:    "vertical_tab",
			content: "#include\v<windows.h>\n",
			expected: []model.Violation{
				{File: "Header.h", Line: 1, Text: "#include\v<windows.h>", Pattern: bannedInclude(`windows\.h>`)},
			},
		},
		{
			name:    "no_break_space",
			content: "#include\u00a0<Cocoa/Cocoa.h>\n",
			expected: []model.Violation{
				{File: "Header.h", Line: 1, Text: "#include\u00a0<Cocoa/Cocoa.h>", Pattern: bannedInclude(`Cocoa/`)},
			},
		},
		{
			name:    "missing_space_is_not_banned",
			content: "#include<windows.h>\n",
		},
		{
			name:    "quoted_include_is_not_banned",
			content: "#include \"windows.h\"\n",
		},
	}

	patterns := corePatterns(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "Header.h", []byte(tt.content))
			got, err := ScanFile(path, patterns, DefaultMarkers)
			require.NoError(t, err)

			for i := range got {
				got[i].Path = ""
			}
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestScanFileBinaryIsSkipped(t *testing.T) {
	content := append([]byte("#include <windows.h>\n"), 0x00, 0xff, 0xfe, '\n')
	path := writeFile(t, t.TempDir(), "blob.h", content)

	got, err := ScanFile(path, corePatterns(t), DefaultMarkers)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanFileMissing(t *testing.T) {
	_, err := ScanFile(filepath.Join(t.TempDir(), "nope.h"), corePatterns(t), DefaultMarkers)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"NomadCore", "NomadAudio Headers"}, reg.Names())

	audio, ok := reg.Lookup("NomadAudio Headers")
	require.True(t, ok)
	assert.Equal(t, "NomadAudio/include", audio.Root)
	assert.True(t, audio.Recursive)
	assert.Contains(t, audio.Patterns, bannedInclude(`RtAudio\.h>`))

	_, ok = reg.Lookup("NomadPlat")
	assert.False(t, ok)

	compiled, err := reg.Compile()
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Len(t, compiled[0].Regexps, 6)

	filtered, err := reg.Filter([]string{"NomadAudio Headers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NomadAudio Headers"}, filtered.Names())

	_, err = reg.Filter([]string{"NomadUI"})
	assert.Error(t, err)
}

func TestRuleCompileErrors(t *testing.T) {
	_, err := Rule{Name: "x", Patterns: []string{"("}}.Compile()
	assert.Error(t, err)

	_, err = Rule{Name: "x", Patterns: []string{"a"}, Exclude: []string{"["}}.Compile()
	assert.Error(t, err)
}

func TestExcluded(t *testing.T) {
	c, err := Rule{Name: "x", Patterns: []string{"a"}, Exclude: []string{"src/Linux/**", "*.gen.h"}}.Compile()
	require.NoError(t, err)

	assert.True(t, c.Excluded("src/Linux", true))
	assert.True(t, c.Excluded("src/Linux/Alsa.h", false))
	assert.True(t, c.Excluded("Table.gen.h", false))
	assert.False(t, c.Excluded("src/Linux.h", false))
	assert.False(t, c.Excluded("include/Table.gen.h", false), "* não atravessa diretórios")
	assert.False(t, c.Excluded("src/Win32", true))
}

func compile(t *testing.T, r Rule) CompiledRule {
	t.Helper()
	c, err := r.Compile()
	require.NoError(t, err)
	return c
}

func TestWalk(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "NomadCore/include/B.h", []byte("#include <windows.h>\n"))
	writeFile(t, project, "NomadCore/include/A.h", []byte("#pragma once\n#include <Cocoa/Cocoa.h>\n"))
	writeFile(t, project, "NomadCore/src/deep/C.cpp", []byte("#include <X11/Xlib.h>\n"))
	writeFile(t, project, "NomadCore/src/notes.txt", []byte("#include <windows.h>\n"))
	writeFile(t, project, "NomadCore/src/Clean.c", []byte("int main(void) { return 0; }\n"))

	rule, _ := DefaultRegistry().Lookup("NomadCore")
	w := NewWalker(nil)

	res, err := w.Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	assert.False(t, res.Missing)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 4, res.Files)

	var got []string
	for _, v := range res.Violations {
		assert.Equal(t, "NomadCore", v.Module)
		got = append(got, v.Path+":"+v.String())
	}
	assert.Equal(t, []string{
		"NomadCore/include/A.h:A.h:2 - #include <Cocoa/Cocoa.h>",
		"NomadCore/include/B.h:B.h:1 - #include <windows.h>",
		"NomadCore/src/deep/C.cpp:C.cpp:1 - #include <X11/Xlib.h>",
	}, got)
}

func TestWalkNonRecursive(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "Mod/Top.h", []byte("#include <windows.h>\n"))
	writeFile(t, project, "Mod/sub/Deep.h", []byte("#include <windows.h>\n"))

	rule := Rule{Name: "Mod", Root: "Mod", Patterns: []string{`#include\s+<windows\.h>`}, Recursive: false}
	res, err := NewWalker(nil).Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "Top.h", res.Violations[0].File)
}

func TestWalkExclude(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "NomadAudio/include/Audio.h", []byte("#include <RtAudio.h>\n"))
	writeFile(t, project, "NomadAudio/include/Linux/AlsaDriver.h", []byte("#include <alsa/asoundlib.h>\n"))
	writeFile(t, project, "NomadAudio/include/Win32/WasapiDriver.h", []byte("#include <windows.h>\n"))

	rule, _ := DefaultRegistry().Lookup("NomadAudio Headers")
	rule.Exclude = []string{"Linux/**", "Win32/**"}
	res, err := NewWalker(nil).Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "Audio.h:1 - #include <RtAudio.h>", res.Violations[0].String())
}

func TestWalkMissingRoot(t *testing.T) {
	rule, _ := DefaultRegistry().Lookup("NomadCore")
	project := t.TempDir()

	core, logs := observer.New(zap.WarnLevel)
	res, err := NewWalker(zap.New(core).Sugar()).Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	assert.True(t, res.Missing)
	assert.Equal(t, filepath.Join(project, "NomadCore"), res.Root)
	assert.Empty(t, res.Violations)

	// o aviso precisa sair no log também, senão -o json/sarif não mostra nada
	entries := logs.FilterMessage("módulo ausente").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, filepath.Join(project, "NomadCore"), entries[0].ContextMap()["raiz"])
}

func TestWalkRootIsFile(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "NomadCore", []byte("not a dir"))
	rule, _ := DefaultRegistry().Lookup("NomadCore")

	res, err := NewWalker(nil).Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	assert.False(t, res.Missing)
	assert.Len(t, res.Errors, 1)
}

func TestWalkUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permissões não se aplicam")
	}
	project := t.TempDir()
	path := writeFile(t, project, "NomadCore/Locked.h", []byte("#include <windows.h>\n"))
	writeFile(t, project, "NomadCore/Open.h", []byte("#include <windows.h>\n"))
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	rule, _ := DefaultRegistry().Lookup("NomadCore")
	res, err := NewWalker(nil).Walk(context.Background(), project, compile(t, rule))
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, path, res.Errors[0].Path)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "Open.h", res.Violations[0].File)
}

func TestWalkDeterministicAcrossJobs(t *testing.T) {
	project := t.TempDir()
	for _, name := range []string{"z", "a", "m", "b", "y", "c"} {
		writeFile(t, project, "NomadCore/"+name+"/"+name+".h", []byte("#include <windows.h>\n#include <jack/jack.h>\n"))
	}
	rule, _ := DefaultRegistry().Lookup("NomadCore")
	compiled := compile(t, rule)

	var runs [][]model.Violation
	for _, jobs := range []int{1, 4, 16} {
		w := NewWalker(nil)
		w.Jobs = jobs
		res, err := w.Walk(context.Background(), project, compiled)
		require.NoError(t, err)
		runs = append(runs, res.Violations)
	}
	require.Len(t, runs[0], 12)
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[0], runs[2])
	assert.Equal(t, "NomadCore/a/a.h", runs[0][0].Path)
}

func TestWalkCanceled(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "NomadCore/A.h", []byte("#include <windows.h>\n"))
	rule, _ := DefaultRegistry().Lookup("NomadCore")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWalker(nil).Walk(ctx, project, compile(t, rule))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	project := t.TempDir()
	writeFile(t, project, "NomadAudio/include/Audio.h", []byte("#include <RtAudio.h>\n"))

	rules, err := DefaultRegistry().Compile()
	require.NoError(t, err)
	results, err := NewWalker(nil).Run(context.Background(), project, rules)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "NomadCore", results[0].Module)
	assert.True(t, results[0].Missing)
	assert.Equal(t, "NomadAudio Headers", results[1].Module)
	assert.Len(t, results[1].Violations, 1)
}
