package repl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"status", []string{"status"}, false},
		{"  set   get  motor.req ", []string{"set", "get", "motor.req"}, false},
		{`set define a.req --macros "P=ioc:,R=m1"`, []string{"set", "define", "a.req", "--macros", "P=ioc:,R=m1"}, false},
		{`restore 'my file.sav'`, []string{"restore", "my file.sav"}, false},
		{`say it\ now`, []string{"say", "it now"}, false},
		{`empty ""`, []string{"empty", ""}, false},
		{`bad "open`, nil, true},
		{`bad \`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Split(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Split() error = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestREPL_Run(t *testing.T) {
	var calls [][]string
	exec := func(args []string) error {
		calls = append(calls, args)
		if args[0] == "fail" {
			return errors.New("boom")
		}
		return nil
	}

	in := strings.NewReader("status\n\nset get a.req\nfail\nhistory\nexit\nnever\n")
	var out bytes.Buffer
	r := New("autosave> ", exec, WithIO(in, &out))
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("calls = %v, want 3", calls)
	}
	if strings.Join(calls[1], " ") != "set get a.req" {
		t.Errorf("second call = %v", calls[1])
	}
	if !strings.Contains(out.String(), "Error: boom") {
		t.Errorf("output missing error: %q", out.String())
	}
	if !strings.Contains(out.String(), "   2  set get a.req") {
		t.Errorf("history not printed: %q", out.String())
	}
}

func TestREPL_EOF(t *testing.T) {
	r := New("> ", func([]string) error { return nil }, WithIO(strings.NewReader("status"), &bytes.Buffer{}))
	if err := r.Run(); err != nil {
		t.Errorf("Run() at EOF = %v, want nil", err)
	}
}

func TestREPL_Complete(t *testing.T) {
	var out bytes.Buffer
	r := New("", func([]string) error { return nil },
		WithIO(strings.NewReader("complete se\n"), &out),
		WithCompleter(NewCompleter([]string{"set get", "set remove", "save"})))
	_ = r.Run()
	if !strings.Contains(out.String(), "set get\nset remove\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter([]string{"status", "save", "set define", "set get"})
	tests := []struct {
		prefix string
		want   []string
	}{
		{"s", []string{"status", "save", "set define", "set get"}},
		{"set g", []string{"set get"}},
		{"ex", []string{"exit"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory("", 3)
	for _, cmd := range []string{"a", "b", "b", "c", "d"} {
		h.Add(cmd)
	}
	if got := strings.Join(h.Entries(), ","); got != "b,c,d" {
		t.Errorf("Entries() = %s, want b,c,d", got)
	}
	if h.Get(0) != "d" || h.Get(2) != "b" || h.Get(3) != "" {
		t.Errorf("Get: %q %q %q", h.Get(0), h.Get(2), h.Get(3))
	}
}

func TestHistory_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")
	h := NewHistory(path, 10)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() of missing file = %v", err)
	}
	h.Add("status")
	h.Add("save a.req")
	if err := h.Save(); err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(path); err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("stat = %v, %v", st, err)
	}

	loaded := NewHistory(path, 10)
	if err := loaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(loaded.Entries(), ","); got != "status,save a.req" {
		t.Errorf("loaded = %s", got)
	}
}
