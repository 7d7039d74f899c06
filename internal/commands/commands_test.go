// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testRegistry registers a small command set; ran records invocations.
func testRegistry(ran *[]Invocation) *Registry {
	r := NewRegistry()
	record := func(_ context.Context, inv Invocation) error {
		*ran = append(*ran, inv)
		return nil
	}
	r.Register(&Command{Name: "/help", Aliases: []string{"/h", "/?"}, Description: "Show help", Category: "General", Handler: record})
	r.Register(&Command{Name: "/history", Description: "List chats", Category: "Chats", Handler: record})
	r.Register(&Command{
		Name:        "/open",
		Aliases:     []string{"/o"},
		Description: "Open a chat",
		Category:    "Chats",
		Args:        []ArgDef{{Name: "chat", Required: true, Type: ArgTypeSession}},
		Handler:     record,
	})
	r.Register(&Command{
		Name:     "/export",
		Category: "Chats",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json", "txt"}},
			{Name: "dir", Type: ArgTypeFile},
		},
		Handler: record,
	})
	r.Register(&Command{Name: "/debug", Hidden: true, Handler: record})
	r.Register(&Command{
		Name:    "/quit",
		Handler: func(context.Context, Invocation) error { return ErrQuit },
	})
	return r
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/open 3", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		got := IsCommand(tc.input)
		if got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/open 3", "/open"},
		{"/rename my trip", "/rename"},
		{"  /help  ", "/help"},
		{"hello", ""},
		{"/", "/"},
	}

	for _, tc := range tests {
		got := ExtractCommandName(tc.input)
		if got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"/help", []string{"/help"}},
		{"/open 3", []string{"/open", "3"}},
		{`/rename "my trip"`, []string{"/rename", "my trip"}},
		{`/rename 'my trip'`, []string{"/rename", "my trip"}},
		{`/image "photo of cat.png" what is it`, []string{"/image", "photo of cat.png", "what", "is", "it"}},
		{`/rename "say \"hi\""`, []string{"/rename", `say "hi"`}},
		{"/rename Café crème", []string{"/rename", "Café", "crème"}},
	}

	for _, tc := range tests {
		got := ParseArgs(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("ParseArgs(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseArgs(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
			}
		}
	}
}

func TestParser_Parse(t *testing.T) {
	var ran []Invocation
	p := NewParser(testRegistry(&ran))

	tests := []struct {
		input     string
		isCommand bool
		cmdName   string
		argsLen   int
		rawArgs   string
		found     bool
	}{
		{"/help", true, "/help", 0, "", true},
		{"/h", true, "/h", 0, "", true},
		{"/HELP", true, "/HELP", 0, "", true},
		{"/open 3", true, "/open", 1, "3", true},
		{"hello world", false, "", 0, "", false},
		{"/nonexistent", true, "/nonexistent", 0, "", false},
		{`/open "a b"  c`, true, "/open", 2, `"a b"  c`, true},
	}

	for _, tc := range tests {
		result := p.Parse(tc.input)

		if result.IsCommand != tc.isCommand {
			t.Errorf("Parse(%q).IsCommand = %v, want %v", tc.input, result.IsCommand, tc.isCommand)
		}
		if result.CommandName != tc.cmdName {
			t.Errorf("Parse(%q).CommandName = %q, want %q", tc.input, result.CommandName, tc.cmdName)
		}
		if len(result.Args) != tc.argsLen {
			t.Errorf("Parse(%q) args length = %d, want %d", tc.input, len(result.Args), tc.argsLen)
		}
		if result.RawArgs != tc.rawArgs {
			t.Errorf("Parse(%q).RawArgs = %q, want %q", tc.input, result.RawArgs, tc.rawArgs)
		}
		if (result.Command != nil) != tc.found {
			t.Errorf("Parse(%q).Command found = %v, want %v", tc.input, result.Command != nil, tc.found)
		}
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_GetByAlias(t *testing.T) {
	var ran []Invocation
	r := testRegistry(&ran)

	if cmd := r.Get("/?"); cmd == nil || cmd.Name != "/help" {
		t.Errorf("Get(/?) = %v, want /help", cmd)
	}
	if cmd := r.Get("/missing"); cmd != nil {
		t.Errorf("Get(/missing) = %v, want nil", cmd)
	}
}

func TestRegistry_AllSorted(t *testing.T) {
	var ran []Invocation
	all := testRegistry(&ran).All()

	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Fatalf("All() not sorted: %s before %s", all[i-1].Name, all[i].Name)
		}
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	var ran []Invocation
	groups := testRegistry(&ran).ByCategory()

	if len(groups["Chats"]) != 3 {
		t.Errorf("Chats has %d commands, want 3", len(groups["Chats"]))
	}
	// Uncategorized commands land in General; hidden ones are left out.
	for _, cmd := range groups["General"] {
		if cmd.Name == "/debug" {
			t.Error("hidden command listed")
		}
	}
	if len(groups["General"]) != 2 {
		t.Errorf("General has %d commands, want 2 (/help, /quit)", len(groups["General"]))
	}
}

func TestRegistry_Execute(t *testing.T) {
	var ran []Invocation
	r := testRegistry(&ran)
	p := NewParser(r)
	ctx := context.Background()

	if err := r.Execute(ctx, p.Parse("/o 2")); err != nil {
		t.Fatalf("Execute(/o 2) = %v", err)
	}
	if len(ran) != 1 || ran[0].Name != "/o" || ran[0].Arg(0) != "2" || ran[0].Arg(1) != "" {
		t.Errorf("unexpected invocation %+v", ran)
	}

	var verr *ValidationError
	if err := r.Execute(ctx, p.Parse("/open")); !errors.As(err, &verr) {
		t.Errorf("Execute(/open) = %v, want ValidationError", err)
	}
	if err := r.Execute(ctx, p.Parse("/export pdf")); !errors.As(err, &verr) {
		t.Errorf("Execute(/export pdf) = %v, want ValidationError", err)
	}
	if err := r.Execute(ctx, p.Parse("/nope")); !errors.As(err, &verr) || verr.Message != "unknown command" {
		t.Errorf("Execute(/nope) = %v, want unknown command", err)
	}
	if err := r.Execute(ctx, p.Parse("/quit")); !errors.Is(err, ErrQuit) {
		t.Errorf("Execute(/quit) = %v, want ErrQuit", err)
	}
	if len(ran) != 1 {
		t.Errorf("rejected commands ran: %+v", ran)
	}
}

func TestValidateArgs(t *testing.T) {
	cmdWithRequired := &Command{
		Name: "/test",
		Args: []ArgDef{
			{Name: "required_arg", Required: true, Description: "A required argument"},
		},
	}

	if err := ValidateArgs(cmdWithRequired, []string{}); err == nil {
		t.Error("ValidateArgs should return error for missing required argument")
	}
	if err := ValidateArgs(cmdWithRequired, []string{"value"}); err != nil {
		t.Errorf("ValidateArgs should not error when required argument provided: %v", err)
	}

	cmdWithEnum := &Command{
		Name: "/export",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json", "txt"}},
		},
	}
	if err := ValidateArgs(cmdWithEnum, []string{"JSON"}); err != nil {
		t.Errorf("ValidateArgs should accept case-insensitive enum: %v", err)
	}
	if err := ValidateArgs(cmdWithEnum, []string{"pdf"}); err == nil {
		t.Error("ValidateArgs should reject invalid enum value")
	}
	if err := ValidateArgs(nil, []string{"anything"}); err != nil {
		t.Errorf("ValidateArgs(nil) should not error: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Command:  "/test",
		Arg:      "arg1",
		Message:  "invalid value",
		Got:      "bad",
		Expected: "good1, good2",
	}

	errStr := err.Error()
	for _, s := range []string{"/test", "arg1", "invalid value", "bad", "good1, good2"} {
		if !strings.Contains(errStr, s) {
			t.Errorf("Error() should contain %q, got: %s", s, errStr)
		}
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestCompleterComplete(t *testing.T) {
	var ran []Invocation
	c := NewCompleter(testRegistry(&ran))

	tests := []struct {
		name      string
		input     string
		want      []string
		wantFirst string
	}{
		{name: "all commands", input: "/", wantFirst: "/export"},
		{name: "partial", input: "/h", want: []string{"/help", "/history", "/h"}},
		{name: "alias after two characters", input: "/o", want: []string{"/open", "/o"}},
		{name: "enum argument", input: "/export j", want: []string{"json"}},
		{name: "enum after space", input: "/export ", want: []string{"json", "txt", "md"}},
		{name: "no match", input: "/xyz"},
		{name: "plain text", input: "hello"},
		{name: "unknown command argument", input: "/nope x"},
		{name: "past the last argument", input: "/open 1 2 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Complete(tt.input, len(tt.input))
			if tt.wantFirst != "" {
				if len(got) == 0 || !strings.HasPrefix(got[0].Value, "/") {
					t.Fatalf("Complete(%q) = %v", tt.input, got)
				}
				for _, comp := range got {
					if comp.Value == "/debug" {
						t.Error("hidden command offered")
					}
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Complete(%q) = %v, want %v", tt.input, values(got), tt.want)
			}
			for _, w := range tt.want {
				if !containsValue(got, w) {
					t.Errorf("Complete(%q) missing %q in %v", tt.input, w, values(got))
				}
			}
		})
	}
}

func TestCompleterSessions(t *testing.T) {
	var ran []Invocation
	c := NewCompleter(testRegistry(&ran))
	c.SessionsFn = func() []SessionInfo {
		return []SessionInfo{
			{ID: "session_200_bbbb", Title: "Weekend trip"},
			{ID: "session_100_aaaa", Title: "Recipes"},
		}
	}

	got := c.Complete("/open ", 6)
	if !containsValue(got, "1") || !containsValue(got, "2") {
		t.Errorf("numbers not offered: %v", values(got))
	}

	got = c.Complete("/open session_1", 15)
	if len(got) != 1 || got[0].Value != "session_100_aaaa" {
		t.Errorf("id prefix: %v", values(got))
	}

	got = c.Complete("/open trip", 10)
	if len(got) != 1 || got[0].Value != "1" {
		t.Errorf("title match: %v", values(got))
	}
}

func TestCompleterFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cat.png", "car.jpg", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "cats"), 0755); err != nil {
		t.Fatal(err)
	}

	var ran []Invocation
	c := NewCompleter(testRegistry(&ran))

	input := "/export md " + filepath.Join(dir, "ca")
	got := c.Complete(input, len(input))
	if len(got) != 3 {
		t.Fatalf("Complete(%q) = %v", input, values(got))
	}
	// Directories rank first.
	if got[0].Value != filepath.Join(dir, "cats")+string(os.PathSeparator) {
		t.Errorf("first = %q", got[0].Value)
	}
	if containsValue(got, filepath.Join(dir, ".hidden")) {
		t.Error("hidden file offered")
	}
}

func TestCompleterLines(t *testing.T) {
	var ran []Invocation
	c := NewCompleter(testRegistry(&ran))
	c.VoicesFn = func() []string { return []string{"en-us", "en-gb"} }

	got := c.Lines("/export js")
	if len(got) != 1 || got[0] != "/export json" {
		t.Errorf("Lines(/export js) = %v", got)
	}

	got = c.Lines("/hi")
	if len(got) != 1 || got[0] != "/history" {
		t.Errorf("Lines(/hi) = %v", got)
	}

	if got := c.Lines("hello"); got != nil {
		t.Errorf("Lines(hello) = %v, want nil", got)
	}

	c.FilesFn = func(string) []string { return []string{"my photo.png"} }
	got = c.Lines("/export md my")
	if len(got) != 1 || got[0] != `/export md "my photo.png"` {
		t.Errorf("Lines quoting = %v", got)
	}
}

func TestCalculateScore(t *testing.T) {
	if calculateScore("/help", "/help") <= calculateScore("/help", "/h") {
		t.Error("exact match should outrank prefix match")
	}
	if calculateScore("/new", "/n") <= calculateScore("/notify", "/n") {
		t.Error("shorter completion should rank higher")
	}
}

func values(cs []Completion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Value
	}
	return out
}

func containsValue(cs []Completion, v string) bool {
	for _, c := range cs {
		if c.Value == v {
			return true
		}
	}
	return false
}
